// Package web exposes the dictation practice service over HTTP.
//
// The API mirrors what the practice frontend consumes: JSON endpoints under
// /api for language selection, sentence retrieval, transcription, and
// synthesis, plus static serving of synthesized audio. Each browser is
// pinned to a pipeline session through a cookie, so language selection
// affects only that client. Operational endpoints (/healthz, /readyz,
// /metrics) ride on the same router.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/vocalis/internal/artifact"
	"github.com/MrWong99/vocalis/internal/health"
	"github.com/MrWong99/vocalis/internal/observe"
	"github.com/MrWong99/vocalis/internal/pipeline"
)

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithMetrics replaces the metrics instance used by the server and its
// middleware. Mainly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Server holds the handlers for the HTTP API.
type Server struct {
	pipeline *pipeline.Pipeline
	store    *artifact.Store
	health   *health.Handler
	metrics  *observe.Metrics
	sessions *sessionStore
}

// NewServer creates a Server around the speech pipeline. The store serves
// synthesized audio by URL; checks registers the health endpoints.
func NewServer(p *pipeline.Pipeline, store *artifact.Store, checks *health.Handler, opts ...Option) *Server {
	s := &Server{
		pipeline: p,
		store:    store,
		health:   checks,
		metrics:  observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(s)
	}
	s.sessions = newSessionStore(p, s.metrics, defaultSessionIdle)
	return s
}

// Routes assembles the chi router with all endpoints and middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(observe.Middleware(s.metrics))

	r.Route("/api", func(r chi.Router) {
		r.Post("/language", s.handleSelectLanguage)
		r.Get("/sentence", s.handleSentence)
		r.Post("/transcribe", s.handleTranscribe)
		r.Post("/synthesize", s.handleSynthesize)
	})
	r.Get("/"+s.store.URLPrefix()+"/{name}", s.handleArtifact)

	r.Get("/healthz", s.health.Healthz)
	r.Get("/readyz", s.health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
