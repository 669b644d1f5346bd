package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/vocalis/internal/observe"
	"github.com/MrWong99/vocalis/internal/pipeline"
)

// sessionCookie names the cookie that pins a browser to its pipeline session.
const sessionCookie = "vocalis_session"

// defaultSessionIdle is how long a session survives without a request before
// it is dropped.
const defaultSessionIdle = 2 * time.Hour

type sessionEntry struct {
	session  *pipeline.Session
	lastSeen time.Time
}

// sessionStore maps cookie values to pipeline sessions. Idle sessions are
// pruned lazily on access; there is no background reaper.
type sessionStore struct {
	mu       sync.Mutex
	pipeline *pipeline.Pipeline
	metrics  *observe.Metrics
	idle     time.Duration
	entries  map[string]*sessionEntry
}

func newSessionStore(p *pipeline.Pipeline, m *observe.Metrics, idle time.Duration) *sessionStore {
	return &sessionStore{
		pipeline: p,
		metrics:  m,
		idle:     idle,
		entries:  make(map[string]*sessionEntry),
	}
}

// resolve returns the pipeline session for the request's cookie, creating a
// fresh session (and setting the cookie) when the request carries none or
// names a session that has been pruned.
func (st *sessionStore) resolve(w http.ResponseWriter, r *http.Request) *pipeline.Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.pruneLocked()

	if c, err := r.Cookie(sessionCookie); err == nil {
		if e, ok := st.entries[c.Value]; ok {
			e.lastSeen = time.Now()
			return e.session
		}
	}

	id := uuid.NewString()
	e := &sessionEntry{session: st.pipeline.NewSession(), lastSeen: time.Now()}
	st.entries[id] = e
	st.metrics.ActiveSessions.Add(r.Context(), 1)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return e.session
}

// count returns the number of live sessions.
func (st *sessionStore) count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.entries)
}

func (st *sessionStore) pruneLocked() {
	cutoff := time.Now().Add(-st.idle)
	for id, e := range st.entries {
		if e.lastSeen.Before(cutoff) {
			delete(st.entries, id)
			st.metrics.ActiveSessions.Add(context.Background(), -1)
		}
	}
}
