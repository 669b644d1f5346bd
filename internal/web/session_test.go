package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSession_CookiePinsLanguage(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(postJSON(t, "/api/language", selectLanguageRequest{Language: "vi"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("select vi: status = %d", rec.Code)
	}
	cookie := sessionCookieOf(t, rec)

	// The cookie carries the selection into the next request.
	req := httptest.NewRequest("GET", "/api/sentence", nil)
	req.AddCookie(cookie)
	rec = ts.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("sentence with cookie: status = %d", rec.Code)
	}
	res := decodeBody[sentenceResponse](t, rec)
	if res.Sentence != "con mèo trèo cây cau" {
		t.Errorf("sentence = %q, want the selected language bank", res.Sentence)
	}

	// A cookie-less request starts fresh on the default language.
	rec = ts.do(httptest.NewRequest("GET", "/api/sentence", nil))
	res = decodeBody[sentenceResponse](t, rec)
	if res.Sentence != "the quick brown fox" {
		t.Errorf("sentence = %q, want the default language bank", res.Sentence)
	}
}

func TestSession_StableAcrossRequests(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest("GET", "/api/sentence", nil))
	cookie := sessionCookieOf(t, rec)
	if got := ts.srv.sessions.count(); got != 1 {
		t.Fatalf("sessions = %d, want 1", got)
	}

	for range 3 {
		req := httptest.NewRequest("GET", "/api/sentence", nil)
		req.AddCookie(cookie)
		rec = ts.do(req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		// A live session does not get a replacement cookie.
		if cs := rec.Result().Cookies(); len(cs) != 0 {
			t.Errorf("unexpected Set-Cookie on repeat request: %v", cs)
		}
	}
	if got := ts.srv.sessions.count(); got != 1 {
		t.Errorf("sessions = %d, want 1 after repeat requests", got)
	}
}

func TestSession_UnknownCookieGetsFresh(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/sentence", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "stale-id"})
	rec := ts.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	fresh := sessionCookieOf(t, rec)
	if fresh.Value == "stale-id" {
		t.Error("unknown session id was adopted instead of replaced")
	}
}

func TestSessionStore_PrunesIdleSessions(t *testing.T) {
	ts := newTestServer(t)
	st := newSessionStore(ts.srv.pipeline, ts.srv.metrics, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	if sess := st.resolve(rec, httptest.NewRequest("GET", "/", nil)); sess == nil {
		t.Fatal("resolve returned nil session")
	}
	cookie := sessionCookieOf(t, rec)
	if got := st.count(); got != 1 {
		t.Fatalf("sessions = %d, want 1", got)
	}

	time.Sleep(25 * time.Millisecond)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookie)
	st.resolve(rec, req)

	if got := st.count(); got != 1 {
		t.Errorf("sessions = %d, want the idle entry pruned", got)
	}
	replacement := sessionCookieOf(t, rec)
	if replacement.Value == cookie.Value {
		t.Error("expired session id was reused")
	}
}

func TestSessionStore_TouchKeepsSessionAlive(t *testing.T) {
	ts := newTestServer(t)
	st := newSessionStore(ts.srv.pipeline, ts.srv.metrics, 250*time.Millisecond)

	rec := httptest.NewRecorder()
	first := st.resolve(rec, httptest.NewRequest("GET", "/", nil))
	cookie := sessionCookieOf(t, rec)

	// Keep touching the session at intervals shorter than the idle cutoff.
	for range 3 {
		time.Sleep(50 * time.Millisecond)
		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(cookie)
		if got := st.resolve(httptest.NewRecorder(), req); got != first {
			t.Fatal("touched session was replaced")
		}
	}
	if got := st.count(); got != 1 {
		t.Errorf("sessions = %d, want 1", got)
	}
}
