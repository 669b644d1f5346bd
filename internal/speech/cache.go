package speech

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// cache is an append-only map of loaded handles keyed by language code.
//
// load deduplicates concurrent loads per key: while a load for "en" is in
// flight, every other load("en") blocks on that flight and receives its
// result, while load("vi") proceeds independently. Only successful loads are
// stored, so a failed key can be retried later.
type cache[H any] struct {
	mu      sync.RWMutex
	flight  singleflight.Group
	entries map[string]H
}

func newCache[H any]() *cache[H] {
	return &cache[H]{entries: make(map[string]H)}
}

// get returns the cached handle for key, if present.
func (c *cache[H]) get(key string) (H, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.entries[key]
	return h, ok
}

// has reports whether a handle is cached for key.
func (c *cache[H]) has(key string) bool {
	_, ok := c.get(key)
	return ok
}

// load returns the cached handle for key, running loadFn to produce it on
// first use. Concurrent callers with the same key share one loadFn
// invocation and observe the same result.
func (c *cache[H]) load(key string, loadFn func() (H, error)) (H, error) {
	if h, ok := c.get(key); ok {
		return h, nil
	}
	v, err, _ := c.flight.Do(key, func() (any, error) {
		// A flight that finished between the fast path and here may
		// already have stored the handle.
		if h, ok := c.get(key); ok {
			return h, nil
		}
		h, err := loadFn()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = h
		c.mu.Unlock()
		return h, nil
	})
	if err != nil {
		var zero H
		return zero, err
	}
	return v.(H), nil
}

// drain removes and returns every cached handle.
func (c *cache[H]) drain() map[string]H {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.entries
	c.entries = make(map[string]H)
	return out
}
