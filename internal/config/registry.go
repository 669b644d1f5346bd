package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/vocalis/pkg/provider/asr"
	"github.com/MrWong99/vocalis/pkg/provider/tts"
)

// ErrEngineNotRegistered is returned by Create* methods when no factory has
// been registered under the requested engine name.
var ErrEngineNotRegistered = errors.New("config: engine not registered")

// Registry maps engine names to their constructor functions for each
// capability. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	tts map[string]func(EngineEntry) (tts.Engine, error)
	asr map[string]func(EngineEntry) (asr.Engine, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		tts: make(map[string]func(EngineEntry) (tts.Engine, error)),
		asr: make(map[string]func(EngineEntry) (asr.Engine, error)),
	}
}

// RegisterTTS registers a synthesis engine factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTTS(name string, factory func(EngineEntry) (tts.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterASR registers a recognition engine factory under name.
func (r *Registry) RegisterASR(name string, factory func(EngineEntry) (asr.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asr[name] = factory
}

// CreateTTS instantiates a synthesis engine using the factory registered under
// entry.Engine. Returns [ErrEngineNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateTTS(entry EngineEntry) (tts.Engine, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Engine]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrEngineNotRegistered, entry.Engine)
	}
	return factory(entry)
}

// CreateASR instantiates a recognition engine using the factory registered
// under entry.Engine.
func (r *Registry) CreateASR(entry EngineEntry) (asr.Engine, error) {
	r.mu.RLock()
	factory, ok := r.asr[entry.Engine]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: asr/%q", ErrEngineNotRegistered, entry.Engine)
	}
	return factory(entry)
}
