// Package cmap provides a sharded concurrent map with per-entry exclusive
// accessors. Acquiring an entry locks only that entry; accessors on disjoint
// keys never block each other. Entries are never removed, so Len is
// monotonically non-decreasing.
package cmap

import (
	"hash/maphash"
	"sync"
	"sync/atomic"
)

const numShards = 64

// Entry is a single map slot. The caller that acquired the entry may read
// and mutate Value until it calls Release.
type Entry[V any] struct {
	mu    sync.Mutex
	Value V
}

// Release unlocks the entry. The caller must not touch the entry afterwards.
func (e *Entry[V]) Release() { e.mu.Unlock() }

type shard[V any] struct {
	mu      sync.RWMutex
	entries map[string]*Entry[V]
}

// Map is a string-keyed concurrent map distributing entries across shards to
// reduce lock contention.
type Map[V any] struct {
	shards [numShards]shard[V]
	seed   maphash.Seed
	length atomic.Int64
}

// New creates an empty map.
func New[V any]() *Map[V] {
	m := &Map[V]{seed: maphash.MakeSeed()}
	for i := range m.shards {
		m.shards[i].entries = make(map[string]*Entry[V])
	}
	return m
}

func (m *Map[V]) shard(key string) *shard[V] {
	return &m.shards[maphash.String(m.seed, key)%numShards]
}

// Acquire locks and returns the entry for key, or (nil, false) if absent.
func (m *Map[V]) Acquire(key string) (*Entry[V], bool) {
	s := m.shard(key)
	s.mu.RLock()
	e := s.entries[key]
	s.mu.RUnlock()
	if e == nil {
		return nil, false
	}
	e.mu.Lock()
	return e, true
}

// Insert locks and returns the entry for key, creating it with value if
// absent. The second result reports whether an insertion took place; when
// false, the returned entry holds the previously stored value.
func (m *Map[V]) Insert(key string, value V) (*Entry[V], bool) {
	s := m.shard(key)

	s.mu.RLock()
	e := s.entries[key]
	s.mu.RUnlock()

	inserted := false
	if e == nil {
		s.mu.Lock()
		e = s.entries[key]
		if e == nil {
			e = &Entry[V]{Value: value}
			s.entries[key] = e
			m.length.Add(1)
			inserted = true
		}
		s.mu.Unlock()
	}

	e.mu.Lock()
	return e, inserted
}

// Len returns the number of entries.
func (m *Map[V]) Len() int { return int(m.length.Load()) }

// Range visits every entry, holding its lock for the duration of fn. The
// iteration order is unspecified. Returning false stops the walk.
func (m *Map[V]) Range(fn func(key string, e *Entry[V]) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		keys := make([]string, 0, len(s.entries))
		for k := range s.entries {
			keys = append(keys, k)
		}
		s.mu.RUnlock()

		for _, k := range keys {
			e, ok := m.Acquire(k)
			if !ok {
				continue
			}
			cont := fn(k, e)
			e.Release()
			if !cont {
				return
			}
		}
	}
}
