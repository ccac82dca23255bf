// Package memo provides a bounded memoisation cache with FIFO eviction.
//
// Entries are evicted in insertion order once the cache holds more than
// MaxSize keys. Reads do not refresh an entry's position.
package memo

import (
	"encoding/json"
	"sync"
)

// DefaultMaxSize is the capacity used when New receives a non-positive size.
const DefaultMaxSize = 50

// Memo caches values by key and evicts the oldest inserted key first.
type Memo[V any] struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]V
	order   []string
}

// New returns an empty cache holding at most maxSize entries.
func New[V any](maxSize int) *Memo[V] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Memo[V]{
		maxSize: maxSize,
		entries: make(map[string]V, maxSize),
		order:   make([]string, 0, maxSize+1),
	}
}

// Get returns the cached value for key.
func (m *Memo[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

// Put stores value under key. Re-putting an existing key replaces the value
// without changing its eviction position. The empty key is never stored.
func (m *Memo[V]) Put(key string, value V) {
	if key == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; ok {
		m.entries[key] = value
		return
	}

	m.entries[key] = value
	m.order = append(m.order, key)
	if len(m.order) > m.maxSize {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
}

// Do returns the cached value for key or computes, stores and returns it.
// hit reports whether the value came from the cache. An empty key always
// computes.
func (m *Memo[V]) Do(key string, fn func() V) (value V, hit bool) {
	if key == "" {
		return fn(), false
	}
	if v, ok := m.Get(key); ok {
		return v, true
	}
	v := fn()
	m.Put(key, v)
	return v, false
}

// Len returns the number of cached entries.
func (m *Memo[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Keys returns cached keys in eviction order, oldest first.
func (m *Memo[V]) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, len(m.order))
	copy(keys, m.order)
	return keys
}

// Key builds the default cache key: the JSON encoding of the argument list.
// Arguments JSON cannot encode (NaN, infinities, channels) yield "", which
// Put and Do treat as uncacheable.
func Key(args ...any) string {
	payload, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return string(payload)
}
