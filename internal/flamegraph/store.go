package flamegraph

import (
	"sync"
	"time"
)

type (
	entry[T any] struct {
		value     T
		expiresAt time.Time
	}

	// Store keeps values in memory for ttl after their last access.
	Store[T any] struct {
		mu      sync.Mutex
		ttl     time.Duration
		now     func() time.Time
		entries map[string]*entry[T]
	}
)

func NewStore[T any](ttl time.Duration) *Store[T] {
	return &Store[T]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*entry[T]),
	}
}

func (s *Store[T]) Put(key string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &entry[T]{value: v, expiresAt: s.now().Add(s.ttl)}
}

// Get returns the value stored under key and extends its lifetime.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	now := s.now()
	if !ok || now.After(e.expiresAt) {
		var zero T
		return zero, false
	}
	e.expiresAt = now.Add(s.ttl)
	return e.value, true
}

// GetOrCreate returns the value stored under key, storing the one returned
// by create if there is none.
func (s *Store[T]) GetOrCreate(key string, create func() T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.entries[key]; ok && !now.After(e.expiresAt) {
		e.expiresAt = now.Add(s.ttl)
		return e.value
	}
	v := create()
	s.entries[key] = &entry[T]{value: v, expiresAt: now.Add(s.ttl)}
	return v
}

func (s *Store[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Sweep evicts expired values and returns how many were evicted.
func (s *Store[T]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var evicted int
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
			evicted++
		}
	}
	return evicted
}

func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
