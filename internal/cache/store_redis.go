package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ecplacas/internal/platform/metrics"
)

const (
	redisEntryPrefix = "ecplacas:cache:entry:"
	redisHitSuffix   = ":hits"
	redisIndexKey    = "ecplacas:cache:index"
	redisHitsKey     = "ecplacas:cache:stats:hits"
	redisMissesKey   = "ecplacas:cache:stats:misses"
)

// RedisStore is the shared cache backend for multi-instance deployments.
// Entries live under per-key TTLs; a sorted set indexed by expiry timestamp
// drives capacity eviction and the expiry sweep.
type RedisStore struct {
	client     redis.Cmdable
	maxEntries int
	metrics    *metrics.Metrics
}

// NewRedisStore creates a Redis-backed store with the given capacity bound.
func NewRedisStore(client redis.Cmdable, maxEntries int, m *metrics.Metrics) *RedisStore {
	return &RedisStore{client: client, maxEntries: maxEntries, metrics: m}
}

// Get fetches a fresh entry, bumping its hit counter, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, plateNum, source string) (*Entry, error) {
	key := Key(plateNum, source)

	raw, err := s.client.Get(ctx, redisEntryPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.client.Incr(ctx, redisMissesKey)
		s.metrics.RecordCacheMiss()
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}

	// Redis expires the key itself, but guard against clock skew between
	// the envelope timestamp and the key TTL.
	if time.Now().After(entry.ExpiresAt) {
		s.client.Incr(ctx, redisMissesKey)
		s.metrics.RecordCacheMiss()
		return nil, ErrNotFound
	}

	// The per-entry counter lives beside the entry and is bumped with INCR,
	// so concurrent hits (or other instances) never lose increments.
	pipe := s.client.TxPipeline()
	hits := pipe.Incr(ctx, redisEntryPrefix+key+redisHitSuffix)
	pipe.Expire(ctx, redisEntryPrefix+key+redisHitSuffix, time.Until(entry.ExpiresAt))
	pipe.Incr(ctx, redisHitsKey)
	if _, err := pipe.Exec(ctx); err == nil {
		entry.Hits = hits.Val()
	}
	s.metrics.RecordCacheHit()
	return &entry, nil
}

// Put upserts the entry with its TTL and evicts ascending-expiry entries when
// the index exceeds the capacity bound.
func (s *RedisStore) Put(ctx context.Context, plateNum, source string, payload []byte, ttl time.Duration) error {
	key := Key(plateNum, source)
	now := time.Now()
	entry := Entry{
		Key:       key,
		Plate:     plateNum,
		Source:    source,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	raw, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisEntryPrefix+key, raw, ttl)
	pipe.Del(ctx, redisEntryPrefix+key+redisHitSuffix)
	pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(entry.ExpiresAt.Unix()), Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put: %w", err)
	}

	return s.evictOverCapacity(ctx)
}

// Invalidate removes the entry and its index member. Idempotent.
func (s *RedisStore) Invalidate(ctx context.Context, plateNum, source string) error {
	key := Key(plateNum, source)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisEntryPrefix+key, redisEntryPrefix+key+redisHitSuffix)
	pipe.ZRem(ctx, redisIndexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

// PurgeExpired drops index members whose expiry has passed. The entry keys
// themselves are already gone via Redis TTL; this reconciles the index.
func (s *RedisStore) PurgeExpired(ctx context.Context) (int, error) {
	now := fmt.Sprintf("%d", time.Now().Unix())

	stale, err := s.client.ZRangeByScore(ctx, redisIndexKey, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis purge scan: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	for _, key := range stale {
		pipe.Del(ctx, redisEntryPrefix+key, redisEntryPrefix+key+redisHitSuffix)
	}
	pipe.ZRemRangeByScore(ctx, redisIndexKey, "-inf", now)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis purge: %w", err)
	}
	s.metrics.RecordEvictions(len(stale))
	return len(stale), nil
}

// Stats reports the live index size, cumulative hit/miss counters and the
// expiry spread.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	entries, err := s.client.ZCount(ctx, redisIndexKey, fmt.Sprintf("%d", time.Now().Unix()), "+inf").Result()
	if err != nil {
		return Stats{}, fmt.Errorf("redis stats count: %w", err)
	}

	hits, _ := s.client.Get(ctx, redisHitsKey).Int64()
	misses, _ := s.client.Get(ctx, redisMissesKey).Int64()

	stats := Stats{
		Entries: int(entries),
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate(hits, misses),
	}

	if oldest, err := s.client.ZRangeWithScores(ctx, redisIndexKey, 0, 0).Result(); err == nil && len(oldest) > 0 {
		stats.OldestExpiry = time.Unix(int64(oldest[0].Score), 0)
	}
	if newest, err := s.client.ZRangeWithScores(ctx, redisIndexKey, -1, -1).Result(); err == nil && len(newest) > 0 {
		stats.NewestExpiry = time.Unix(int64(newest[0].Score), 0)
	}
	return stats, nil
}

// evictOverCapacity removes the soonest-to-expire members past maxEntries.
func (s *RedisStore) evictOverCapacity(ctx context.Context) error {
	size, err := s.client.ZCard(ctx, redisIndexKey).Result()
	if err != nil {
		return fmt.Errorf("redis index size: %w", err)
	}
	over := int(size) - s.maxEntries
	if over <= 0 {
		return nil
	}

	victims, err := s.client.ZRange(ctx, redisIndexKey, 0, int64(over-1)).Result()
	if err != nil {
		return fmt.Errorf("redis eviction scan: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, key := range victims {
		pipe.Del(ctx, redisEntryPrefix+key, redisEntryPrefix+key+redisHitSuffix)
		pipe.ZRem(ctx, redisIndexKey, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis eviction: %w", err)
	}
	s.metrics.RecordEvictions(len(victims))
	return nil
}
