package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"ecplacas/internal/platform/metrics"
)

// MemoryStore is the default single-process cache backend. A single RWMutex
// serializes writers; reads that only inspect the map take the read lock.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	maxEntries int
	hits       int64
	misses     int64
	metrics    *metrics.Metrics
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMetrics wires cache counters into the store.
func WithMetrics(m *metrics.Metrics) MemoryOption {
	return func(s *MemoryStore) {
		s.metrics = m
	}
}

// NewMemoryStore creates an in-memory store holding at most maxEntries
// entries. Inserting past the limit evicts entries closest to expiry first.
func NewMemoryStore(maxEntries int, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries:    make(map[string]*Entry),
		maxEntries: maxEntries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a fresh entry for the plate and source, incrementing its hit
// counter, or ErrNotFound when missing or expired.
func (s *MemoryStore) Get(_ context.Context, plateNum, source string) (*Entry, error) {
	key := Key(plateNum, source)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || now.After(entry.ExpiresAt) {
		s.misses++
		s.metrics.RecordCacheMiss()
		return nil, ErrNotFound
	}

	entry.Hits++
	s.hits++
	s.metrics.RecordCacheHit()
	return copyEntry(entry), nil
}

// Put inserts or overwrites the entry and enforces the capacity bound.
func (s *MemoryStore) Put(_ context.Context, plateNum, source string, payload []byte, ttl time.Duration) error {
	key := Key(plateNum, source)
	now := time.Now()

	stored := &Entry{
		Key:       key,
		Plate:     plateNum,
		Source:    source,
		Payload:   append([]byte(nil), payload...),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = stored
	evicted := s.evictOverCapacityLocked()
	s.metrics.RecordEvictions(evicted)
	return nil
}

// Invalidate removes the entry if present. Idempotent.
func (s *MemoryStore) Invalidate(_ context.Context, plateNum, source string) error {
	key := Key(plateNum, source)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// PurgeExpired removes every entry whose expiry has passed and returns the
// number removed.
func (s *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	s.metrics.RecordEvictions(removed)
	return removed, nil
}

// Stats reports live entry counts and cumulative hit/miss totals.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Hits: s.hits, Misses: s.misses, HitRate: hitRate(s.hits, s.misses)}
	for _, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			continue
		}
		stats.Entries++
		if stats.OldestExpiry.IsZero() || entry.ExpiresAt.Before(stats.OldestExpiry) {
			stats.OldestExpiry = entry.ExpiresAt
		}
		if entry.ExpiresAt.After(stats.NewestExpiry) {
			stats.NewestExpiry = entry.ExpiresAt
		}
	}
	return stats, nil
}

// evictOverCapacityLocked removes entries in ascending expiry order until the
// store fits maxEntries again. Caller holds the write lock.
func (s *MemoryStore) evictOverCapacityLocked() int {
	if len(s.entries) <= s.maxEntries {
		return 0
	}

	ordered := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		ordered = append(ordered, entry)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ExpiresAt.Before(ordered[j].ExpiresAt)
	})

	evicted := 0
	for _, entry := range ordered {
		if len(s.entries) <= s.maxEntries {
			break
		}
		delete(s.entries, entry.Key)
		evicted++
	}
	return evicted
}

func copyEntry(e *Entry) *Entry {
	dup := *e
	dup.Payload = append([]byte(nil), e.Payload...)
	return &dup
}
