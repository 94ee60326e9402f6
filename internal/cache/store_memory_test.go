package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MemoryStoreSuite struct {
	suite.Suite
	ctx context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) TestGetPut() {
	s.Run("returns stored payload", func() {
		store := NewMemoryStore(10)
		s.Require().NoError(store.Put(s.ctx, "ABC0123", "sri", []byte(`{"ok":true}`), time.Minute))

		entry, err := store.Get(s.ctx, "ABC0123", "sri")
		s.Require().NoError(err)
		s.Equal("ABC0123", entry.Plate)
		s.Equal("sri", entry.Source)
		s.JSONEq(`{"ok":true}`, string(entry.Payload))
	})

	s.Run("missing entry returns ErrNotFound", func() {
		store := NewMemoryStore(10)
		_, err := store.Get(s.ctx, "XYZ0999", "sri")
		s.Require().ErrorIs(err, ErrNotFound)
	})

	s.Run("same plate under different sources is distinct", func() {
		store := NewMemoryStore(10)
		s.Require().NoError(store.Put(s.ctx, "ABC0123", "sri", []byte(`1`), time.Minute))
		s.Require().NoError(store.Put(s.ctx, "ABC0123", "owner", []byte(`2`), time.Minute))

		sri, err := store.Get(s.ctx, "ABC0123", "sri")
		s.Require().NoError(err)
		owner, err := store.Get(s.ctx, "ABC0123", "owner")
		s.Require().NoError(err)
		s.NotEqual(sri.Payload, owner.Payload)
	})

	s.Run("put overwrites existing entry", func() {
		store := NewMemoryStore(10)
		s.Require().NoError(store.Put(s.ctx, "ABC0123", "sri", []byte(`old`), time.Minute))
		s.Require().NoError(store.Put(s.ctx, "ABC0123", "sri", []byte(`new`), time.Minute))

		entry, err := store.Get(s.ctx, "ABC0123", "sri")
		s.Require().NoError(err)
		s.Equal([]byte(`new`), entry.Payload)

		stats, err := store.Stats(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, stats.Entries)
	})
}

func (s *MemoryStoreSuite) TestExpiry() {
	store := NewMemoryStore(10)
	s.Require().NoError(store.Put(s.ctx, "ABC0123", "sri", []byte(`x`), -time.Second))

	_, err := store.Get(s.ctx, "ABC0123", "sri")
	s.Require().ErrorIs(err, ErrNotFound)

	stats, err := store.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, stats.Entries, "expired entries are excluded from stats")
}

func (s *MemoryStoreSuite) TestHitCounting() {
	store := NewMemoryStore(10)
	s.Require().NoError(store.Put(s.ctx, "ABC0123", "sri", []byte(`x`), time.Minute))

	for i := 0; i < 3; i++ {
		_, err := store.Get(s.ctx, "ABC0123", "sri")
		s.Require().NoError(err)
	}
	_, err := store.Get(s.ctx, "MISSING", "sri")
	s.Require().ErrorIs(err, ErrNotFound)

	entry, err := store.Get(s.ctx, "ABC0123", "sri")
	s.Require().NoError(err)
	s.Equal(int64(4), entry.Hits)

	stats, err := store.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(4), stats.Hits)
	s.Equal(int64(1), stats.Misses)
	s.InDelta(0.8, stats.HitRate, 0.001)
}

func (s *MemoryStoreSuite) TestGetReturnsCopy() {
	store := NewMemoryStore(10)
	s.Require().NoError(store.Put(s.ctx, "ABC0123", "sri", []byte(`original`), time.Minute))

	first, err := store.Get(s.ctx, "ABC0123", "sri")
	s.Require().NoError(err)
	copy(first.Payload, []byte(`mutated!`))

	second, err := store.Get(s.ctx, "ABC0123", "sri")
	s.Require().NoError(err)
	s.Equal([]byte(`original`), second.Payload)
}

func (s *MemoryStoreSuite) TestEviction() {
	s.Run("capacity bound holds", func() {
		store := NewMemoryStore(3)
		for i := 0; i < 5; i++ {
			plate := fmt.Sprintf("ABC%04d", i)
			s.Require().NoError(store.Put(s.ctx, plate, "sri", []byte(`x`), time.Duration(i+1)*time.Minute))
		}

		stats, err := store.Stats(s.ctx)
		s.Require().NoError(err)
		s.Equal(3, stats.Entries)
	})

	s.Run("closest to expiry evicted first", func() {
		store := NewMemoryStore(2)
		s.Require().NoError(store.Put(s.ctx, "AAA0001", "sri", []byte(`x`), time.Minute))
		s.Require().NoError(store.Put(s.ctx, "BBB0002", "sri", []byte(`x`), time.Hour))
		s.Require().NoError(store.Put(s.ctx, "CCC0003", "sri", []byte(`x`), 30*time.Minute))

		_, err := store.Get(s.ctx, "AAA0001", "sri")
		s.Require().ErrorIs(err, ErrNotFound, "shortest TTL entry should have been evicted")

		_, err = store.Get(s.ctx, "BBB0002", "sri")
		s.Require().NoError(err)
		_, err = store.Get(s.ctx, "CCC0003", "sri")
		s.Require().NoError(err)
	})
}

func (s *MemoryStoreSuite) TestInvalidate() {
	store := NewMemoryStore(10)
	s.Require().NoError(store.Put(s.ctx, "ABC0123", "sri", []byte(`x`), time.Minute))

	s.Require().NoError(store.Invalidate(s.ctx, "ABC0123", "sri"))
	_, err := store.Get(s.ctx, "ABC0123", "sri")
	s.Require().ErrorIs(err, ErrNotFound)

	// Idempotent on repeat.
	s.Require().NoError(store.Invalidate(s.ctx, "ABC0123", "sri"))
}

func (s *MemoryStoreSuite) TestPurgeExpired() {
	store := NewMemoryStore(10)
	s.Require().NoError(store.Put(s.ctx, "AAA0001", "sri", []byte(`x`), -time.Second))
	s.Require().NoError(store.Put(s.ctx, "BBB0002", "sri", []byte(`x`), -time.Second))
	s.Require().NoError(store.Put(s.ctx, "CCC0003", "sri", []byte(`x`), time.Hour))

	removed, err := store.PurgeExpired(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, removed)

	_, err = store.Get(s.ctx, "CCC0003", "sri")
	s.Require().NoError(err)
}

func TestKey(t *testing.T) {
	a := Key("ABC0123", "sri")
	b := Key("ABC0123", "sri")
	c := Key("ABC0123", "owner")

	if a != b {
		t.Fatalf("key not deterministic: %s vs %s", a, b)
	}
	if a == c {
		t.Fatalf("distinct sources collided on key %s", a)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}
