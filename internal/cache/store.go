// Package cache persists decomposed query results keyed by (plate, source)
// with a TTL, hit accounting and capacity-bounded eviction.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entry does not exist or has
// expired. Expired entries are logically absent even before the sweep
// physically removes them.
var ErrNotFound = errors.New("cache entry not found")

// Entry is one cached query result. Payload is the serialized decomposed
// record; the cache never interprets it.
type Entry struct {
	Key       string    `json:"key"`
	Plate     string    `json:"plate"`
	Source    string    `json:"source"`
	Payload   []byte    `json:"payload"`
	Hits      int64     `json:"hits"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Stats summarizes the store for the cache management API.
type Stats struct {
	Entries      int       `json:"entries"`
	Hits         int64     `json:"hits"`
	Misses       int64     `json:"misses"`
	HitRate      float64   `json:"hit_rate"`
	OldestExpiry time.Time `json:"oldest_expiry,omitzero"`
	NewestExpiry time.Time `json:"newest_expiry,omitzero"`
}

// Store is the cache contract shared by the in-memory and Redis backends.
// Get returns a deep copy: callers may mutate the payload freely.
type Store interface {
	Get(ctx context.Context, plateNum, source string) (*Entry, error)
	Put(ctx context.Context, plateNum, source string, payload []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, plateNum, source string) error
	PurgeExpired(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
}

// Key derives the cache key for a plate and source pair.
func Key(plateNum, source string) string {
	sum := sha256.Sum256([]byte(plateNum + "|" + source))
	return hex.EncodeToString(sum[:])
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
