package language

import (
	"fmt"
	"slices"
	"sync"
)

// Registry maps language codes to their profiles. Profiles are registered at
// startup and looked up per request.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	codes    []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]*Profile)}
}

// Register adds p under its code. Registering a code twice is an error.
func (r *Registry) Register(p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.profiles[p.Code()]; exists {
		return fmt.Errorf("language: %q registered twice", p.Code())
	}
	r.profiles[p.Code()] = p
	r.codes = append(r.codes, p.Code())
	return nil
}

// Get returns the profile for code, or [ErrUnknownLanguage].
func (r *Registry) Get(code string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	return p, nil
}

// Codes returns the registered language codes in registration order.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.codes)
}
