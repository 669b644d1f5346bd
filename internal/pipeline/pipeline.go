// Package pipeline is the request-facing façade over the language registry.
//
// A Pipeline owns the registry and the configured default language; each
// client conversation gets a Session tracking its current language. Session
// operations auto-load the models they need, so callers see a typed
// capability or load error instead of a not-ready state.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/MrWong99/vocalis/internal/artifact"
	"github.com/MrWong99/vocalis/internal/language"
)

// Pipeline resolves sessions against the language registry.
type Pipeline struct {
	registry    *language.Registry
	defaultCode string
}

// New returns a pipeline whose sessions start on defaultCode. The default
// must be a registered language.
func New(registry *language.Registry, defaultCode string) (*Pipeline, error) {
	if _, err := registry.Get(defaultCode); err != nil {
		return nil, fmt.Errorf("pipeline: default language: %w", err)
	}
	return &Pipeline{registry: registry, defaultCode: defaultCode}, nil
}

// DefaultLanguage returns the code sessions start on.
func (p *Pipeline) DefaultLanguage() string { return p.defaultCode }

// NewSession returns a session positioned on the default language.
func (p *Pipeline) NewSession() *Session {
	return &Session{pipeline: p, code: p.defaultCode}
}

// SelectResult is what a successful language selection hands back to the
// client: the first practice sentence and whether recording makes sense.
type SelectResult struct {
	Sentence string
	HasASR   bool
}

// Session tracks one client's current language.
//
// Session is safe for concurrent use.
type Session struct {
	pipeline *Pipeline

	mu   sync.Mutex
	code string
}

// Language returns the session's current language code.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

func (s *Session) current() (*language.Profile, error) {
	return s.pipeline.registry.Get(s.Language())
}

// Select switches the session to code. Unknown codes fail with
// [language.ErrUnknownLanguage] before any model work happens. On success
// the language's models are loaded eagerly and the result carries the first
// sentence together with the capability flag, so the caller can disable
// recording affordances for synthesis-only languages. The session keeps its
// previous language when selection fails.
func (s *Session) Select(ctx context.Context, code string) (SelectResult, error) {
	profile, err := s.pipeline.registry.Get(code)
	if err != nil {
		return SelectResult{}, err
	}
	if err := profile.EnsureLoaded(ctx); err != nil {
		return SelectResult{}, err
	}

	s.mu.Lock()
	s.code = code
	s.mu.Unlock()

	sentence, err := profile.Sentence()
	if err != nil {
		return SelectResult{}, err
	}
	return SelectResult{Sentence: sentence, HasASR: profile.HasASR()}, nil
}

// Sentence draws a practice sentence from the current language's bank.
func (s *Session) Sentence() (string, error) {
	profile, err := s.current()
	if err != nil {
		return "", err
	}
	return profile.Sentence()
}

// Transcribe runs recognition on upload with the current language's model,
// loading it first when needed.
func (s *Session) Transcribe(ctx context.Context, upload io.Reader) (string, error) {
	profile, err := s.current()
	if err != nil {
		return "", err
	}
	if err := profile.EnsureLoaded(ctx); err != nil {
		return "", err
	}
	return profile.Transcribe(ctx, upload)
}

// Synthesize renders text with the current language's voice, loading it
// first when needed, and returns the stored artifact.
func (s *Session) Synthesize(ctx context.Context, text string) (artifact.Artifact, error) {
	profile, err := s.current()
	if err != nil {
		return artifact.Artifact{}, err
	}
	if err := profile.EnsureLoaded(ctx); err != nil {
		return artifact.Artifact{}, err
	}
	return profile.Synthesize(ctx, text)
}
