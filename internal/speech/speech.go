// Package speech provides the lazy-loading model managers that sit between
// the language layer and the speech engines.
//
// A manager binds one engine (recognition or synthesis) at construction and
// caches the loaded per-language handle so every language pays its load cost
// exactly once per process. Concurrent loads for the same language join a
// single in-flight load; different languages load independently. Handles are
// never evicted.
//
// The ASR manager owns the upload lifecycle for transcription: inbound audio
// is persisted to a scoped artifact, normalized to the model's input format,
// and the artifact is removed again on every return path. The TTS manager
// writes each synthesis result to the artifact store and returns the stored
// artifact for URL serving; those artifacts are retained until the startup
// sweep collects them.
package speech

import (
	"errors"

	"github.com/MrWong99/vocalis/internal/observe"
)

// Sentinel errors returned by the managers. Callers classify failures with
// [errors.Is].
var (
	// ErrModelUnavailable marks a language the bound engine does not serve.
	ErrModelUnavailable = errors.New("speech: model not available")

	// ErrModelNotLoaded marks a transcription attempt before a successful
	// Load for that language.
	ErrModelNotLoaded = errors.New("speech: model not loaded")

	// ErrLoadFailed wraps the engine error that made a load fail. Failed
	// loads are not cached, so a later call retries.
	ErrLoadFailed = errors.New("speech: model load failed")
)

// Option configures a manager.
type Option func(*options)

type options struct {
	metrics *observe.Metrics
}

// WithMetrics sets the instruments the manager records load and inference
// telemetry to. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{metrics: observe.DefaultMetrics()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
