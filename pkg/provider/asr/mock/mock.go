// Package mock provides test doubles for the asr package interfaces.
//
// Use Engine to verify which languages the caller loads and how often. Use
// Model to feed controlled transcriptions and inspect the samples that were
// delivered.
//
// Example:
//
//	m := &mock.Model{Text: "the quick brown fox"}
//	e := &mock.Engine{LanguagesValue: []string{"en"}, Model: m}
//	model, _ := e.LoadModel(ctx, "en")
//	text, _ := model.Transcribe(ctx, samples)
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/vocalis/pkg/provider/asr"
)

// LoadModelCall records a single invocation of Engine.LoadModel.
type LoadModelCall struct {
	// Ctx is the context passed to LoadModel.
	Ctx context.Context
	// Lang is the language code passed to LoadModel.
	Lang string
}

// Engine is a mock implementation of asr.Engine.
type Engine struct {
	mu sync.Mutex

	// NameValue is returned by Name. Defaults to "mock" when empty.
	NameValue string

	// LanguagesValue is returned by Languages.
	LanguagesValue []string

	// Model is the Model returned by LoadModel. If nil, LoadModel returns a
	// new default Model.
	Model asr.Model

	// LoadModelErr, if non-nil, is returned as the error from LoadModel.
	LoadModelErr error

	// LoadModelFn, if non-nil, overrides Model and LoadModelErr entirely.
	LoadModelFn func(ctx context.Context, lang string) (asr.Model, error)

	// LoadDelay, if non-zero, makes LoadModel sleep before returning so tests
	// can hold several goroutines inside one load.
	LoadDelay time.Duration

	// LoadModelCalls records every call to LoadModel.
	LoadModelCalls []LoadModelCall
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

// LoadModel records the call, applies LoadDelay, and returns the configured
// result.
func (e *Engine) LoadModel(ctx context.Context, lang string) (asr.Model, error) {
	e.mu.Lock()
	e.LoadModelCalls = append(e.LoadModelCalls, LoadModelCall{Ctx: ctx, Lang: lang})
	fn := e.LoadModelFn
	model := e.Model
	err := e.LoadModelErr
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
	if model != nil {
		return model, nil
	}
	return &Model{}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.LoadModelCalls = nil
}

// Ensure Engine implements asr.Engine at compile time.
var _ asr.Engine = (*Engine)(nil)

// TranscribeCall records a single invocation of Model.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Samples is a copy of the sample buffer passed to Transcribe.
	Samples []float32
}

// Model is a mock implementation of asr.Model.
type Model struct {
	mu sync.Mutex

	// Text is returned by Transcribe when TranscribeFn is nil.
	Text string

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// TranscribeFn, if non-nil, overrides Text and TranscribeErr entirely.
	TranscribeFn func(ctx context.Context, samples []float32) (string, error)

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall

	// CloseCalls counts invocations of Close.
	CloseCalls int
}

// Transcribe records the call and returns the configured result.
func (m *Model) Transcribe(ctx context.Context, samples []float32) (string, error) {
	m.mu.Lock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	m.TranscribeCalls = append(m.TranscribeCalls, TranscribeCall{Ctx: ctx, Samples: cp})
	fn := m.TranscribeFn
	text := m.Text
	err := m.TranscribeErr
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, samples)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// Close increments CloseCalls and returns nil.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return nil
}

// Ensure Model implements asr.Model at compile time.
var _ asr.Model = (*Model)(nil)
