package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/vocalis/internal/artifact"
	"github.com/MrWong99/vocalis/internal/observe"
	"github.com/MrWong99/vocalis/pkg/audio"
	"github.com/MrWong99/vocalis/pkg/provider/asr"
)

// ASRManager lazily loads recognition models for one ASR engine and runs
// transcriptions against them.
//
// ASRManager is safe for concurrent use.
type ASRManager struct {
	engine  asr.Engine
	store   *artifact.Store
	metrics *observe.Metrics
	models  *cache[asr.Model]
}

// NewASRManager returns a manager bound to engine that persists uploads in
// store.
func NewASRManager(engine asr.Engine, store *artifact.Store, opts ...Option) *ASRManager {
	o := applyOptions(opts)
	return &ASRManager{
		engine:  engine,
		store:   store,
		metrics: o.metrics,
		models:  newCache[asr.Model](),
	}
}

// IsAvailable reports whether the bound engine serves lang. This is a static
// lookup and does not require a loaded model.
func (m *ASRManager) IsAvailable(lang string) bool {
	return slices.Contains(m.engine.Languages(), lang)
}

// Loaded reports whether the model for lang is resident.
func (m *ASRManager) Loaded(lang string) bool { return m.models.has(lang) }

// Load makes the recognition model for lang resident. A repeat call for an
// already loaded language returns immediately, and concurrent calls for the
// same language join the in-flight load. Languages the engine does not serve
// fail with [ErrModelUnavailable]; engine failures come back wrapped in
// [ErrLoadFailed] and are not cached, so a later call retries.
func (m *ASRManager) Load(ctx context.Context, lang string) error {
	_, err := m.loadModel(ctx, lang)
	return err
}

func (m *ASRManager) loadModel(ctx context.Context, lang string) (asr.Model, error) {
	if !m.IsAvailable(lang) {
		return nil, fmt.Errorf("%w: %s/%q", ErrModelUnavailable, m.engine.Name(), lang)
	}
	model, err := m.models.load(lang, func() (asr.Model, error) {
		start := time.Now()
		model, err := m.engine.LoadModel(ctx, lang)
		elapsed := time.Since(start)

		status := "ok"
		if err != nil {
			status = "error"
		}
		m.metrics.RecordModelLoad(ctx, "asr", m.engine.Name(), lang, status, elapsed.Seconds())
		if err != nil {
			return nil, err
		}
		slog.Info("asr model loaded",
			"engine", m.engine.Name(),
			"language", lang,
			"duration", elapsed.Round(time.Millisecond))
		return model, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%q: %w", ErrLoadFailed, m.engine.Name(), lang, err)
	}
	return model, nil
}

// Transcribe persists the uploaded audio, normalizes it to the model input
// format, and runs recognition. The model for lang must have been loaded
// first or the call fails with [ErrModelNotLoaded]. The upload artifact is
// removed again before returning, on every path.
func (m *ASRManager) Transcribe(ctx context.Context, lang string, upload io.Reader) (string, error) {
	model, ok := m.models.get(lang)
	if !ok {
		return "", fmt.Errorf("%w: %s/%q", ErrModelNotLoaded, m.engine.Name(), lang)
	}

	art, err := m.store.SaveUpload(upload)
	if err != nil {
		return "", fmt.Errorf("speech: persist upload: %w", err)
	}
	m.metrics.RecordArtifact(ctx, string(art.Kind))
	defer func() {
		if err := m.store.Remove(art); err != nil {
			slog.Warn("upload artifact not removed", "path", art.Path, "error", err)
		}
	}()

	data, err := os.ReadFile(art.Path)
	if err != nil {
		return "", fmt.Errorf("speech: read upload %s: %w", art.Name, err)
	}
	clip, err := audio.DecodeWAV(data)
	if err != nil {
		return "", fmt.Errorf("speech: decode upload: %w", err)
	}
	samples := audio.Float32Mono(audio.Normalize(clip, asr.SampleRate).Data)

	start := time.Now()
	text, err := model.Transcribe(ctx, samples)
	m.metrics.ASRDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		observe.Attr("engine", m.engine.Name()),
		observe.Attr("language", lang),
	))
	if err != nil {
		m.metrics.RecordEngineError(ctx, "asr", m.engine.Name(), lang)
		return "", fmt.Errorf("speech: transcribe %s/%q: %w", m.engine.Name(), lang, err)
	}
	return text, nil
}

// Close releases every loaded model. The manager must not be used afterwards.
func (m *ASRManager) Close() error {
	var errs []error
	for lang, model := range m.models.drain() {
		if err := model.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close asr model %q: %w", lang, err))
		}
	}
	return errors.Join(errs...)
}
