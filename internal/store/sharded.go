// Package store provides the sharded, unbounded map that backs the resource
// registry and the font source table.
package store

import (
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
)

// ShardCount is the number of shards. Must be a power of 2 for fast modulo
// via bitwise AND.
const (
	ShardCount = 16
	shardMask  = ShardCount - 1
)

// Hasher computes the shard-selection hash for a key.
type Hasher[K any] func(K) uint64

// StringHasher computes the FNV-1a hash of a string key.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Sharded is a thread-safe map split across ShardCount shards to reduce
// lock contention between concurrent uploads and export-time lookups.
//
// Entries are never evicted: they live until Delete or Clear.
type Sharded[K comparable, V any] struct {
	shards [ShardCount]*shard[K, V]
	hasher Hasher[K]

	hits   atomic.Uint64
	misses atomic.Uint64
}

type shard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// Stats holds lookup counters.
type Stats struct {
	Len    int
	Hits   uint64
	Misses uint64
}

// New creates an empty sharded map using hasher for shard selection.
func New[K comparable, V any](hasher Hasher[K]) *Sharded[K, V] {
	m := &Sharded[K, V]{hasher: hasher}
	for i := range m.shards {
		m.shards[i] = &shard[K, V]{entries: make(map[K]V)}
	}
	return m
}

func (m *Sharded[K, V]) shardFor(key K) *shard[K, V] {
	return m.shards[m.hasher(key)&shardMask]
}

// Get returns the value stored under key.
func (m *Sharded[K, V]) Get(key K) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	v, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (m *Sharded[K, V]) Set(key K, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()
}

// SetIfAbsent stores value only when key is unused and reports whether it
// did.
func (m *Sharded[K, V]) SetIfAbsent(key K, value V) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return false
	}
	s.entries[key] = value
	return true
}

// GetOrCreate returns the stored value or creates it with create.
// create runs under the shard lock so it runs at most once per key.
func (m *Sharded[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	if v, ok := m.Get(key); ok {
		return v, nil
	}
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.entries[key]; ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		return v, err
	}
	s.entries[key] = v
	return v, nil
}

// Delete removes key and reports whether it was present.
func (m *Sharded[K, V]) Delete(key K) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

// Clear removes all entries.
func (m *Sharded[K, V]) Clear() {
	for _, s := range m.shards {
		s.mu.Lock()
		s.entries = make(map[K]V)
		s.mu.Unlock()
	}
}

// Len returns the total number of entries across all shards.
func (m *Sharded[K, V]) Len() int {
	total := 0
	for _, s := range m.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// Range calls fn for every entry until fn returns false. Each shard is
// read-locked while it is visited, so fn must not modify the map.
func (m *Sharded[K, V]) Range(fn func(K, V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.entries {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Stats returns the entry count and lookup counters.
func (m *Sharded[K, V]) Stats() Stats {
	return Stats{Len: m.Len(), Hits: m.hits.Load(), Misses: m.misses.Load()}
}

// SortedKeys returns the keys of a string-keyed map in ascending order.
func SortedKeys[V any](m *Sharded[string, V]) []string {
	keys := make([]string, 0, m.Len())
	m.Range(func(k string, _ V) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	return keys
}
