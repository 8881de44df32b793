package ratelimit

import (
	"sync"
	"time"
)

// Entry is one fixed-window counter. It is discarded once ResetAt passes.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Store holds rate-limit entries. A single-process map and a shared cache are
// interchangeable behind this interface; call sites never see the difference.
type Store interface {
	Get(key string) (Entry, bool)
	Put(key string, entry Entry)
	Sweep(now time.Time) int
}

// MapStore is the default in-process Store.
type MapStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMapStore() *MapStore {
	return &MapStore{entries: make(map[string]Entry)}
}

func (s *MapStore) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *MapStore) Put(key string, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
}

// Sweep drops expired entries and returns how many were removed. Expiry is
// lazy on the request path; the sweep only bounds memory.
func (s *MapStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if !now.Before(entry.ResetAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Bucket is a fixed-window rate limiter: at most capacity allowed requests
// per key per window. Distinct keys never interfere with each other.
type Bucket struct {
	mu       sync.Mutex
	store    Store
	capacity int
	window   time.Duration
	now      func() time.Time
}

func NewBucket(capacity int, window time.Duration) *Bucket {
	return NewBucketWithStore(NewMapStore(), capacity, window)
}

func NewBucketWithStore(store Store, capacity int, window time.Duration) *Bucket {
	return &Bucket{
		store:    store,
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}
}

// Allow reports whether the request for key fits the current window. Denied
// calls never mutate the counter.
func (b *Bucket) Allow(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	entry, ok := b.store.Get(key)
	if !ok || !now.Before(entry.ResetAt) {
		b.store.Put(key, Entry{Count: 1, ResetAt: now.Add(b.window)})
		return true
	}

	if entry.Count < b.capacity {
		entry.Count++
		b.store.Put(key, entry)
		return true
	}
	return false
}

// Window is the configured window duration, exposed for Retry-After hints.
func (b *Bucket) Window() time.Duration {
	return b.window
}

// Sweep removes expired entries. Scheduled on an interval independent of
// request traffic.
func (b *Bucket) Sweep() int {
	return b.store.Sweep(b.now())
}
