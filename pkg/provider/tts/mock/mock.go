// Package mock provides test doubles for the tts package interfaces.
//
// Use Engine to verify which languages the caller loads and how often. Use
// Voice to feed controlled PCM clips and inspect the text that was
// synthesised.
//
// Example:
//
//	v := &mock.Voice{Clip: audio.Clip{Data: pcm, SampleRate: 16000, Channels: 1}}
//	e := &mock.Engine{LanguagesValue: []string{"en"}, Voice: v}
//	voice, _ := e.LoadVoice(ctx, "en")
//	clip, _ := voice.Synthesize(ctx, "hello")
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/vocalis/pkg/audio"
	"github.com/MrWong99/vocalis/pkg/provider/tts"
)

// LoadVoiceCall records a single invocation of Engine.LoadVoice.
type LoadVoiceCall struct {
	// Ctx is the context passed to LoadVoice.
	Ctx context.Context
	// Lang is the language code passed to LoadVoice.
	Lang string
}

// Engine is a mock implementation of tts.Engine.
type Engine struct {
	mu sync.Mutex

	// NameValue is returned by Name. Defaults to "mock" when empty.
	NameValue string

	// LanguagesValue is returned by Languages.
	LanguagesValue []string

	// Voice is the Voice returned by LoadVoice. If nil, LoadVoice returns a
	// new default Voice.
	Voice tts.Voice

	// LoadVoiceErr, if non-nil, is returned as the error from LoadVoice.
	LoadVoiceErr error

	// LoadVoiceFn, if non-nil, overrides Voice and LoadVoiceErr entirely.
	LoadVoiceFn func(ctx context.Context, lang string) (tts.Voice, error)

	// LoadDelay, if non-zero, makes LoadVoice sleep before returning so tests
	// can hold several goroutines inside one load.
	LoadDelay time.Duration

	// LoadVoiceCalls records every call to LoadVoice.
	LoadVoiceCalls []LoadVoiceCall
}

// Name returns NameValue, or "mock" when unset.
func (e *Engine) Name() string {
	if e.NameValue == "" {
		return "mock"
	}
	return e.NameValue
}

// Languages returns LanguagesValue.
func (e *Engine) Languages() []string { return e.LanguagesValue }

// LoadVoice records the call, applies LoadDelay, and returns the configured
// result.
func (e *Engine) LoadVoice(ctx context.Context, lang string) (tts.Voice, error) {
	e.mu.Lock()
	e.LoadVoiceCalls = append(e.LoadVoiceCalls, LoadVoiceCall{Ctx: ctx, Lang: lang})
	fn := e.LoadVoiceFn
	voice := e.Voice
	err := e.LoadVoiceErr
	delay := e.LoadDelay
	e.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fn != nil {
		return fn(ctx, lang)
	}
	if err != nil {
		return nil, err
	}
	if voice != nil {
		return voice, nil
	}
	return &Voice{}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.LoadVoiceCalls = nil
}

// Ensure Engine implements tts.Engine at compile time.
var _ tts.Engine = (*Engine)(nil)

// SynthesizeCall records a single invocation of Voice.Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the utterance passed to Synthesize.
	Text string
}

// defaultClipSamples sizes the fallback clip: 100 ms of 16 kHz mono silence.
const defaultClipSamples = 1600

// Voice is a mock implementation of tts.Voice.
type Voice struct {
	mu sync.Mutex

	// Clip is returned by Synthesize when SynthesizeFn is nil. A zero Clip is
	// replaced by 100 ms of mono 16 kHz silence.
	Clip audio.Clip

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error

	// SynthesizeFn, if non-nil, overrides Clip and SynthesizeErr entirely.
	SynthesizeFn func(ctx context.Context, text string) (audio.Clip, error)

	// SynthesizeCalls records every call to Synthesize.
	SynthesizeCalls []SynthesizeCall

	// CloseCalls counts invocations of Close.
	CloseCalls int
}

// Synthesize records the call and returns the configured result.
func (v *Voice) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	v.mu.Lock()
	v.SynthesizeCalls = append(v.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text})
	fn := v.SynthesizeFn
	clip := v.Clip
	err := v.SynthesizeErr
	v.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	if err != nil {
		return audio.Clip{}, err
	}
	if clip.SampleRate == 0 {
		clip = audio.Clip{
			Data:       make([]byte, defaultClipSamples*2),
			SampleRate: 16000,
			Channels:   1,
		}
	}
	return clip, nil
}

// Close increments CloseCalls and returns nil.
func (v *Voice) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.CloseCalls++
	return nil
}

// Ensure Voice implements tts.Voice at compile time.
var _ tts.Voice = (*Voice)(nil)
