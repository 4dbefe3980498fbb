package cache

import (
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// ErrInvalidShape is returned by New when the cache dimensions are not positive.
var ErrInvalidShape = errors.New("cache: numSets and maxElemsPerSet must be positive")

// Cache is a set-associative cache with a fixed number of sets. Each set holds
// at most maxElemsPerSet entries and is replaced using the clock
// (second-chance) policy.
//
// Get, Put and Delete do not lock. The caller must hold Lock(key) for as long
// as a read-modify-write spanning the cache and the backing store is in
// progress; the cache cannot know which of its operations belong together.
type Cache struct {
	sets           []*set
	maxElemsPerSet int

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// set is one partition of the cache. entries is kept in insertion/rotation
// order; the head is the next eviction candidate.
type set struct {
	mu      sync.Mutex
	entries []*entry
}

type entry struct {
	key        string
	value      string
	referenced bool
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// New constructs a cache with numSets sets of maxElemsPerSet entries each.
func New(numSets, maxElemsPerSet int) (*Cache, error) {
	if numSets < 1 || maxElemsPerSet < 1 {
		return nil, ErrInvalidShape
	}
	c := &Cache{
		sets:           make([]*set, numSets),
		maxElemsPerSet: maxElemsPerSet,
	}
	for i := range c.sets {
		c.sets[i] = &set{entries: make([]*entry, 0, maxElemsPerSet)}
	}
	return c, nil
}

// NumSets returns the number of sets.
func (c *Cache) NumSets() int { return len(c.sets) }

// MaxElemsPerSet returns the per-set capacity.
func (c *Cache) MaxElemsPerSet() int { return c.maxElemsPerSet }

// SetID returns the index of the set that key maps to. The mapping is
// deterministic for the lifetime of the process and across restarts.
func (c *Cache) SetID(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(c.sets)))
}

// Lock returns the exclusive lock of the set that contains key.
func (c *Cache) Lock(key string) sync.Locker {
	return &c.setFor(key).mu
}

// Get returns the value for key and marks the entry as referenced.
func (c *Cache) Get(key string) (string, bool) {
	s := c.setFor(key)
	if i := s.index(key); i >= 0 {
		e := s.entries[i]
		e.referenced = true
		c.hits.Add(1)
		return e.value, true
	}
	c.misses.Add(1)
	return "", false
}

// Put stores value under key and reports whether the key was already cached.
// An overwritten entry loses its referenced bit: a fresh write has not been
// read yet. When the set is full an entry is evicted first.
func (c *Cache) Put(key, value string) bool {
	s := c.setFor(key)
	if i := s.index(key); i >= 0 {
		e := s.entries[i]
		e.value = value
		e.referenced = false
		return true
	}
	if len(s.entries) >= c.maxElemsPerSet {
		s.evict()
		c.evictions.Add(1)
	}
	s.entries = append(s.entries, &entry{key: key, value: value})
	return false
}

// Delete removes key from the cache. It is a no-op if the key is absent.
func (c *Cache) Delete(key string) {
	s := c.setFor(key)
	if i := s.index(key); i >= 0 {
		s.remove(i)
	}
}

// Len returns the number of cached entries across all sets.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.sets {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.Len(),
	}
}

func (c *Cache) setFor(key string) *set {
	return c.sets[c.SetID(key)]
}

func (s *set) index(key string) int {
	for i, e := range s.entries {
		if e.key == key {
			return i
		}
	}
	return -1
}

func (s *set) remove(i int) {
	copy(s.entries[i:], s.entries[i+1:])
	s.entries[len(s.entries)-1] = nil
	s.entries = s.entries[:len(s.entries)-1]
}

// evict runs the second-chance sweep: a referenced head loses its bit and
// rotates to the tail; the first unreferenced head is removed. The sweep ends
// after at most one full rotation since every bit it passes is cleared.
func (s *set) evict() {
	for len(s.entries) > 0 {
		head := s.entries[0]
		if !head.referenced {
			s.remove(0)
			return
		}
		head.referenced = false
		copy(s.entries, s.entries[1:])
		s.entries[len(s.entries)-1] = head
	}
}
