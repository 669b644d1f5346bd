// Package language binds language codes to sentence banks and speech
// capabilities.
//
// A Profile describes one practice language: its dictation sentences, whether
// recognition is available for it, and the managers that serve its models.
// Capability is a queryable flag, not an error to catch: callers check HasASR
// before offering recording, and a runtime ASR load failure downgrades the
// profile to synthesis-only instead of breaking it. Synthesis is mandatory;
// a language whose voice cannot load is unusable and says so.
//
// The Registry maps codes to profiles and is the single place an unknown
// language code turns into [ErrUnknownLanguage].
package language

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/MrWong99/vocalis/internal/artifact"
	"github.com/MrWong99/vocalis/internal/speech"
)

// Sentinel errors surfaced to the web boundary, classified with [errors.Is].
var (
	// ErrUnknownLanguage marks a code no profile is registered for.
	ErrUnknownLanguage = errors.New("language: unknown language")

	// ErrASRUnavailable marks a transcription attempt against a language
	// without recognition support.
	ErrASRUnavailable = errors.New("language: speech recognition not available")

	// ErrNotReady marks an operation that requires loaded models before
	// EnsureLoaded has succeeded.
	ErrNotReady = errors.New("language: models not loaded")

	// ErrNoSentences marks a sentence draw from an empty bank.
	ErrNoSentences = errors.New("language: no sentences available")
)

// displayNames maps language codes to the names shown in logs and summaries.
var displayNames = map[string]string{
	"en": "English",
	"vi": "Vietnamese",
}

// Profile is one practice language. Construct it with [NewProfile]; the zero
// value is not usable.
//
// Profile is safe for concurrent use.
type Profile struct {
	code string
	name string

	asr *speech.ASRManager
	tts *speech.TTSManager

	// sentences is immutable after construction.
	sentences []string

	mu     sync.RWMutex
	hasASR bool
	loaded bool
}

// NewProfile builds the profile for code with the given sentence bank.
// Recognition support is taken from the ASR manager's engine; synthesis
// support is mandatory, so a code the TTS engine does not serve is a
// construction error.
func NewProfile(code string, sentences []string, asrMgr *speech.ASRManager, ttsMgr *speech.TTSManager) (*Profile, error) {
	if code == "" {
		return nil, errors.New("language: empty language code")
	}
	if asrMgr == nil || ttsMgr == nil {
		return nil, fmt.Errorf("language: %q: nil speech manager", code)
	}
	if !ttsMgr.IsAvailable(code) {
		return nil, fmt.Errorf("language: %q: tts engine does not serve it", code)
	}

	name := displayNames[code]
	if name == "" {
		name = code
	}
	p := &Profile{
		code:      code,
		name:      name,
		asr:       asrMgr,
		tts:       ttsMgr,
		sentences: slices.Clone(sentences),
		hasASR:    asrMgr.IsAvailable(code),
	}
	slog.Info("language initialized",
		"code", code,
		"name", name,
		"sentences", len(p.sentences),
		"has_asr", p.hasASR)
	return p, nil
}

// Code returns the language code, e.g. "en".
func (p *Profile) Code() string { return p.code }

// Name returns the display name, e.g. "English".
func (p *Profile) Name() string { return p.name }

// HasASR reports whether recognition is currently available. Starts out as
// the engine's static capability and drops to false for the rest of the
// process when the recognition model fails to load.
func (p *Profile) HasASR() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hasASR
}

// Ready reports whether EnsureLoaded has succeeded for this profile.
func (p *Profile) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

// Sentences returns a copy of the sentence bank.
func (p *Profile) Sentences() []string { return slices.Clone(p.sentences) }

// Sentence draws a random sentence from the bank. Draws are independent and
// uniform; there is no cursor. An empty bank returns [ErrNoSentences].
func (p *Profile) Sentence() (string, error) {
	if len(p.sentences) == 0 {
		return "", fmt.Errorf("%w: %q", ErrNoSentences, p.code)
	}
	return p.sentences[rand.IntN(len(p.sentences))], nil
}

// EnsureLoaded makes the profile's models resident. The voice load is
// mandatory and its failure is returned, leaving the profile not ready so a
// later call retries. A recognition load failure instead downgrades HasASR
// for the rest of the process and the profile still becomes ready.
// EnsureLoaded is idempotent and safe to call concurrently; the managers
// deduplicate the underlying loads.
func (p *Profile) EnsureLoaded(ctx context.Context) error {
	if p.Ready() {
		return nil
	}

	if err := p.tts.Load(ctx, p.code); err != nil {
		return fmt.Errorf("language: %q: %w", p.code, err)
	}

	if p.HasASR() {
		if err := p.asr.Load(ctx, p.code); err != nil {
			slog.Warn("asr load failed, language downgraded to synthesis only",
				"language", p.code, "error", err)
			p.mu.Lock()
			p.hasASR = false
			p.mu.Unlock()
		}
	}

	p.mu.Lock()
	p.loaded = true
	p.mu.Unlock()
	return nil
}

// Transcribe runs recognition on the uploaded audio. Languages without
// recognition return [ErrASRUnavailable]; calling before EnsureLoaded has
// succeeded returns [ErrNotReady].
func (p *Profile) Transcribe(ctx context.Context, upload io.Reader) (string, error) {
	if !p.HasASR() {
		return "", fmt.Errorf("%w for %s (%q)", ErrASRUnavailable, p.name, p.code)
	}
	if !p.Ready() {
		return "", fmt.Errorf("%w: %q", ErrNotReady, p.code)
	}
	return p.asr.Transcribe(ctx, p.code, upload)
}

// Synthesize renders text with the language's voice and returns the stored
// artifact. Calling before EnsureLoaded has succeeded returns [ErrNotReady].
func (p *Profile) Synthesize(ctx context.Context, text string) (artifact.Artifact, error) {
	if !p.Ready() {
		return artifact.Artifact{}, fmt.Errorf("%w: %q", ErrNotReady, p.code)
	}
	return p.tts.Synthesize(ctx, p.code, text)
}
