// Package app wires all Vocalis subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// The speech engines come in from main.go via the Engines struct, already
// constructed through the config registry. For testing, pass mock engines
// there and inject the remaining collaborators via functional options.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/vocalis/internal/artifact"
	"github.com/MrWong99/vocalis/internal/assets"
	"github.com/MrWong99/vocalis/internal/config"
	"github.com/MrWong99/vocalis/internal/health"
	"github.com/MrWong99/vocalis/internal/language"
	"github.com/MrWong99/vocalis/internal/observe"
	"github.com/MrWong99/vocalis/internal/pipeline"
	"github.com/MrWong99/vocalis/internal/speech"
	"github.com/MrWong99/vocalis/internal/web"
	"github.com/MrWong99/vocalis/pkg/provider/asr"
	"github.com/MrWong99/vocalis/pkg/provider/tts"
	"github.com/MrWong99/vocalis/pkg/provider/tts/piper"
)

// Engines holds the speech engine for each capability. Both slots are
// required. Populated by main.go via the config registry.
type Engines struct {
	TTS tts.Engine
	ASR asr.Engine
}

// App owns all subsystem lifetimes and serves the Vocalis practice API.
type App struct {
	cfg     *config.Config
	engines *Engines

	// Subsystems, initialised in New and torn down in Shutdown.
	store    *artifact.Store
	fetcher  *assets.Fetcher
	asrMgr   *speech.ASRManager
	ttsMgr   *speech.TTSManager
	registry *language.Registry
	pipeline *pipeline.Pipeline
	metrics  *observe.Metrics
	server   *http.Server

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics injects the metrics instruments instead of using the globally
// registered defaults.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithFetcher injects the asset fetcher used for voice downloads.
func WithFetcher(f *assets.Fetcher) Option {
	return func(a *App) {
		if f != nil {
			a.fetcher = f
		}
	}
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The engines struct
// comes from main.go, populated via the config registry.
//
// New performs all initialisation synchronously: the artifact directory is
// created and swept, missing voice assets are downloaded, and every enabled
// language is registered. Models are not loaded here; that happens lazily on
// first use.
func New(ctx context.Context, cfg *config.Config, engines *Engines, opts ...Option) (*App, error) {
	if engines == nil || engines.TTS == nil {
		return nil, errors.New("app: tts engine is required")
	}
	if engines.ASR == nil {
		return nil, errors.New("app: asr engine is required")
	}

	a := &App{
		cfg:     cfg,
		engines: engines,
		metrics: observe.DefaultMetrics(),
		fetcher: assets.NewFetcher(),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Artifact store ────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Voice assets ──────────────────────────────────────────────────
	if err := a.initAssets(ctx); err != nil {
		return nil, fmt.Errorf("app: init assets: %w", err)
	}

	// ── 3. Speech managers ───────────────────────────────────────────────
	a.initSpeech()

	// ── 4. Language registry ─────────────────────────────────────────────
	if err := a.initLanguages(); err != nil {
		return nil, fmt.Errorf("app: init languages: %w", err)
	}

	// ── 5. Practice pipeline ─────────────────────────────────────────────
	p, err := pipeline.New(a.registry, a.cfg.Speech.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}
	a.pipeline = p

	// ── 6. HTTP server ───────────────────────────────────────────────────
	a.initServer()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore creates the artifact store and sweeps stale audio left over from
// a previous run.
func (a *App) initStore(ctx context.Context) error {
	store, err := artifact.NewStore(a.cfg.Artifacts.Dir,
		artifact.WithURLPrefix(a.cfg.Artifacts.URLPrefix),
		artifact.WithMaxAge(time.Duration(a.cfg.Artifacts.MaxAgeMinutes)*time.Minute),
	)
	if err != nil {
		return err
	}
	a.store = store

	removed, err := store.Sweep()
	if err != nil {
		// A failed sweep leaves stale files behind but the store works.
		slog.Warn("startup sweep failed", "dir", store.Dir(), "error", err)
		return nil
	}
	a.metrics.RecordSweep(ctx, removed)
	if removed > 0 {
		slog.Info("swept stale audio artifacts", "dir", store.Dir(), "removed", removed)
	}
	return nil
}

// initAssets downloads missing voice assets ahead of the first load. Only the
// piper engine publishes download URLs; other engines bring their own models.
func (a *App) initAssets(ctx context.Context) error {
	if !a.cfg.Speech.TTS.AutoDownload {
		return nil
	}
	pe, ok := a.engines.TTS.(*piper.Engine)
	if !ok {
		slog.Warn("auto_download is only supported by the piper engine, skipping",
			"engine", a.engines.TTS.Name())
		return nil
	}
	for _, code := range a.cfg.Languages.Enabled {
		spec, ok := pe.Voice(code)
		if !ok {
			continue
		}
		if err := a.fetcher.EnsureVoice(ctx, a.cfg.Speech.TTS.ModelsDir, spec); err != nil {
			return fmt.Errorf("voice %q: %w", spec.Name, err)
		}
	}
	return nil
}

// initSpeech creates the model managers for both capabilities.
func (a *App) initSpeech() {
	a.asrMgr = speech.NewASRManager(a.engines.ASR, a.store, speech.WithMetrics(a.metrics))
	a.ttsMgr = speech.NewTTSManager(a.engines.TTS, a.store, speech.WithMetrics(a.metrics))
	a.closers = append(a.closers, a.asrMgr.Close, a.ttsMgr.Close)
}

// initLanguages builds a profile for every enabled language and registers it.
func (a *App) initLanguages() error {
	a.registry = language.NewRegistry()
	for _, code := range a.cfg.Languages.Enabled {
		bank := language.LoadSentences(a.cfg.Languages.SentencesDir, code)
		p, err := language.NewProfile(code, bank, a.asrMgr, a.ttsMgr)
		if err != nil {
			return fmt.Errorf("profile %q: %w", code, err)
		}
		if err := a.registry.Register(p); err != nil {
			return fmt.Errorf("register %q: %w", code, err)
		}
	}
	return nil
}

// initServer assembles the HTTP surface: API routes, artifact serving, and
// the operational endpoints.
func (a *App) initServer() {
	checks := health.New(
		health.ArtifactDir(a.store),
		health.Languages(a.registry),
	)
	srv := web.NewServer(a.pipeline, a.store, checks, web.WithMetrics(a.metrics))
	a.server = &http.Server{
		Addr:         a.cfg.Server.ListenAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// fails. When ctx is done, Run returns ctx.Err(); call Shutdown to drain
// in-flight requests and release the subsystems.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening",
			"addr", a.server.Addr,
			"default_language", a.pipeline.DefaultLanguage(),
			"languages", a.registry.Codes())
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	}
}

// Handler exposes the full wired HTTP surface. Intended for tests and for
// embedding the service in a larger mux.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Registry exposes the language registry. The validation CLI runs its round
// trips against the same profiles the server would use.
func (a *App) Registry() *language.Registry { return a.registry }

// Store exposes the artifact store.
func (a *App) Store() *artifact.Store { return a.store }

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown drains the HTTP server, then tears down the subsystems in
// reverse-init order. It respects the context deadline: if ctx expires before
// all closers finish, the rest are skipped and the context error is returned.
// Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				slog.Warn("http shutdown error", "error", err)
			}
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "error", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
