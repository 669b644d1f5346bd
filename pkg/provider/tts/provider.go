// Package tts defines the Engine interface for speech synthesis backends.
//
// A TTS engine wraps a synthesis backend (a local piper binary, or a Coqui
// TTS server reached over HTTP) behind a uniform batch interface. The engine
// describes which languages it can speak; LoadVoice resolves and validates
// the per-language assets once and returns a Voice handle that performs the
// actual synthesis. One utterance goes in and one PCM clip comes out;
// streaming synthesis is not part of this interface.
//
// Implementations must be safe for concurrent use; multiple Synthesize calls
// may run in parallel on the same Voice.
package tts

import (
	"context"

	"github.com/MrWong99/vocalis/pkg/audio"
)

// Voice is a loaded per-language synthesis voice.
type Voice interface {
	// Synthesize renders text to a PCM clip at the voice's native sample
	// rate. Empty text returns an error rather than an empty clip.
	Synthesize(ctx context.Context, text string) (audio.Clip, error)

	// Close releases all resources held by the voice. Calling Close more
	// than once is safe and returns nil.
	Close() error
}

// Engine is the abstraction over any speech synthesis backend.
type Engine interface {
	// Name returns the engine identifier used in configuration, e.g. "piper".
	Name() string

	// Languages returns the language codes this engine instance is prepared
	// to load, in sorted order. A code outside this list must never be passed
	// to LoadVoice.
	Languages() []string

	// LoadVoice resolves and validates the voice for lang. Engines verify
	// their assets here (model files on disk, server reachability) so that a
	// missing backend surfaces at load time instead of on the first
	// synthesis. The returned Voice is owned by the caller.
	LoadVoice(ctx context.Context, lang string) (Voice, error)
}
