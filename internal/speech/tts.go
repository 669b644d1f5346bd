package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/vocalis/internal/artifact"
	"github.com/MrWong99/vocalis/internal/observe"
	"github.com/MrWong99/vocalis/pkg/audio"
	"github.com/MrWong99/vocalis/pkg/provider/tts"
)

// TTSManager lazily loads synthesis voices for one TTS engine and writes
// each synthesis result to the artifact store.
//
// TTSManager is safe for concurrent use.
type TTSManager struct {
	engine  tts.Engine
	store   *artifact.Store
	metrics *observe.Metrics
	voices  *cache[tts.Voice]
}

// NewTTSManager returns a manager bound to engine that writes synthesis
// output to store.
func NewTTSManager(engine tts.Engine, store *artifact.Store, opts ...Option) *TTSManager {
	o := applyOptions(opts)
	return &TTSManager{
		engine:  engine,
		store:   store,
		metrics: o.metrics,
		voices:  newCache[tts.Voice](),
	}
}

// IsAvailable reports whether the bound engine serves lang. This is a static
// lookup and does not require a loaded voice.
func (m *TTSManager) IsAvailable(lang string) bool {
	return slices.Contains(m.engine.Languages(), lang)
}

// Loaded reports whether the voice for lang is resident.
func (m *TTSManager) Loaded(lang string) bool { return m.voices.has(lang) }

// Load makes the voice for lang resident. A repeat call for an already
// loaded language returns immediately, and concurrent calls for the same
// language join the in-flight load. Languages the engine does not serve fail
// with [ErrModelUnavailable]; engine failures come back wrapped in
// [ErrLoadFailed] and are not cached, so a later call retries.
func (m *TTSManager) Load(ctx context.Context, lang string) error {
	_, err := m.loadVoice(ctx, lang)
	return err
}

func (m *TTSManager) loadVoice(ctx context.Context, lang string) (tts.Voice, error) {
	if !m.IsAvailable(lang) {
		return nil, fmt.Errorf("%w: %s/%q", ErrModelUnavailable, m.engine.Name(), lang)
	}
	voice, err := m.voices.load(lang, func() (tts.Voice, error) {
		start := time.Now()
		voice, err := m.engine.LoadVoice(ctx, lang)
		elapsed := time.Since(start)

		status := "ok"
		if err != nil {
			status = "error"
		}
		m.metrics.RecordModelLoad(ctx, "tts", m.engine.Name(), lang, status, elapsed.Seconds())
		if err != nil {
			return nil, err
		}
		slog.Info("tts voice loaded",
			"engine", m.engine.Name(),
			"language", lang,
			"duration", elapsed.Round(time.Millisecond))
		return voice, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%q: %w", ErrLoadFailed, m.engine.Name(), lang, err)
	}
	return voice, nil
}

// Synthesize renders text with the voice for lang, loading it first when
// needed, and stores the result as a WAV artifact. The returned artifact is
// retained for URL serving; the startup sweep collects it eventually.
func (m *TTSManager) Synthesize(ctx context.Context, lang, text string) (artifact.Artifact, error) {
	voice, err := m.loadVoice(ctx, lang)
	if err != nil {
		return artifact.Artifact{}, err
	}

	start := time.Now()
	clip, err := voice.Synthesize(ctx, text)
	m.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		observe.Attr("engine", m.engine.Name()),
		observe.Attr("language", lang),
	))
	if err != nil {
		m.metrics.RecordEngineError(ctx, "tts", m.engine.Name(), lang)
		return artifact.Artifact{}, fmt.Errorf("speech: synthesize %s/%q: %w", m.engine.Name(), lang, err)
	}

	art, err := m.store.SaveSynthesis(audio.EncodeWAV(clip))
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("speech: store synthesis: %w", err)
	}
	m.metrics.RecordArtifact(ctx, string(art.Kind))
	return art, nil
}

// Close releases every loaded voice. The manager must not be used afterwards.
func (m *TTSManager) Close() error {
	var errs []error
	for lang, voice := range m.voices.drain() {
		if err := voice.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close tts voice %q: %w", lang, err))
		}
	}
	return errors.Join(errs...)
}
