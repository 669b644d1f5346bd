// Package asr defines the Engine interface for speech recognition backends.
//
// An ASR engine wraps a transcription backend (whisper.cpp loaded in-process,
// or a remote whisper-server instance) behind a uniform batch interface. The
// engine itself is a cheap descriptor of what it could load; the expensive
// per-language resources live in the Model handles it produces. Loading a
// model typically means mapping hundreds of megabytes of weights and is
// expected to be cached and deduplicated by the caller rather than repeated
// per request.
//
// Implementations must be safe for concurrent use. A Model must accept
// concurrent Transcribe calls; engines whose backends are not internally
// concurrent serialise inside the handle instead of pushing locking onto
// callers.
package asr

import "context"

// SampleRate is the input sample rate, in Hz, that every Model expects.
// Callers are responsible for resampling before Transcribe.
const SampleRate = 16000

// Model is a loaded per-language recognition model.
//
// Callers must call Close when the model is no longer needed; for in-process
// engines this releases the native weights.
type Model interface {
	// Transcribe runs batch recognition over samples, which must be mono
	// float32 PCM at SampleRate in the range [-1.0, 1.0]. It returns the
	// recognised text with surrounding whitespace trimmed; silence yields an
	// empty string, not an error.
	Transcribe(ctx context.Context, samples []float32) (string, error)

	// Close releases all resources held by the model. Calling Close more
	// than once is safe and returns nil.
	Close() error
}

// Engine is the abstraction over any speech recognition backend.
type Engine interface {
	// Name returns the engine identifier used in configuration, e.g. "whisper".
	Name() string

	// Languages returns the language codes this engine instance is prepared
	// to load, in sorted order. A code outside this list must never be passed
	// to LoadModel.
	Languages() []string

	// LoadModel loads the recognition model for lang. This is a slow call;
	// ctx bounds the load, and the returned Model is owned by the caller.
	LoadModel(ctx context.Context, lang string) (Model, error)
}
