// Package query is the façade over the whole lookup pipeline: normalize,
// cache lookup, fetch on miss, decompose, cache write. Concurrent queries
// for the same plate and source collapse into one upstream fetch.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"ecplacas/internal/audit"
	"ecplacas/internal/cache"
	"ecplacas/internal/plate"
	"ecplacas/internal/platform/metrics"
	"ecplacas/internal/ratelimit"
	"ecplacas/internal/registry"
	"ecplacas/internal/vehicle"
	dErrors "ecplacas/pkg/domain-errors"
)

// DefaultSource names the upstream registry used when callers do not pick one.
const DefaultSource = registry.SourceSRI

// Options tune a single query.
type Options struct {
	// ForceRefresh bypasses the cache read; the result is still written back.
	ForceRefresh bool
	// ClientKey identifies the caller for rate limiting. Empty skips the check.
	ClientKey string
	// Source selects the upstream registry; DefaultSource when empty.
	Source string
}

// Result is the caller-facing outcome of one query.
type Result struct {
	Success   bool            `json:"success"`
	Data      *vehicle.Record `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorCode string          `json:"errorCode,omitempty"`
	FromCache bool            `json:"fromCache"`
	ElapsedMs int64           `json:"elapsedMs"`
	SessionID uuid.UUID       `json:"sessionId"`
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Cache      cache.Store
	Fetcher    registry.Fetcher
	Decomposer *vehicle.Decomposer
	Limiter    *ratelimit.Limiter
	Audit      audit.Store
	Logger     *slog.Logger
	Metrics    *metrics.Metrics

	CacheTTL time.Duration
	// Budget bounds the whole query wall clock, retries included.
	Budget time.Duration
}

// Orchestrator runs plate queries end to end.
type Orchestrator struct {
	cache      cache.Store
	fetcher    registry.Fetcher
	decomposer *vehicle.Decomposer
	limiter    *ratelimit.Limiter
	audit      audit.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics

	ttl    time.Duration
	budget time.Duration

	flight   singleflight.Group
	sessions *sessionTracker
}

// New creates an orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	decomposer := cfg.Decomposer
	if decomposer == nil {
		decomposer = vehicle.NewDecomposer()
	}

	return &Orchestrator{
		cache:      cfg.Cache,
		fetcher:    cfg.Fetcher,
		decomposer: decomposer,
		limiter:    cfg.Limiter,
		audit:      cfg.Audit,
		logger:     logger,
		metrics:    cfg.Metrics,
		ttl:        cfg.CacheTTL,
		budget:     cfg.Budget,
		sessions:   newSessionTracker(),
	}
}

// QueryPlate runs the full pipeline for one plate string. Each call gets its
// own session for progress polling; the upstream fetch may be shared with
// concurrent callers asking for the same plate and source.
func (o *Orchestrator) QueryPlate(ctx context.Context, rawPlate string, opts Options) *Result {
	start := time.Now()
	sessionID := uuid.New()
	source := opts.Source
	if source == "" {
		source = DefaultSource
	}

	o.sessions.update(sessionID, StatePending, 0)

	if o.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.budget)
		defer cancel()
	}

	plateNum, err := plate.Normalize(rawPlate)
	if err != nil {
		return o.fail(ctx, sessionID, rawPlate, "", source, start, false, err)
	}
	o.sessions.update(sessionID, StateNormalizing, 30)

	if !opts.ForceRefresh {
		o.sessions.update(sessionID, StateCacheLookup, 30)
		if entry, err := o.cache.Get(ctx, string(plateNum), source); err == nil {
			var rec vehicle.Record
			if err := json.Unmarshal(entry.Payload, &rec); err == nil {
				return o.succeed(ctx, sessionID, rawPlate, plateNum, source, start, true, &rec)
			}
			// A payload that no longer decodes is dropped so the next
			// query refetches it.
			o.logger.Warn("dropping undecodable cache entry", "plate", plateNum, "source", source)
			_ = o.cache.Invalidate(ctx, string(plateNum), source)
		}
	}

	if o.limiter != nil && opts.ClientKey != "" {
		res, err := o.limiter.Allow(ctx, opts.ClientKey)
		if err != nil {
			return o.fail(ctx, sessionID, rawPlate, plateNum, source, start, false,
				dErrors.Wrap(err, dErrors.CodeInternal, "rate limit check failed"))
		}
		if !res.Allowed {
			return o.fail(ctx, sessionID, rawPlate, plateNum, source, start, false,
				dErrors.Newf(dErrors.CodeRateLimited,
					"query quota exhausted, retry in %s", res.RetryAfter.Round(time.Second)))
		}
	}

	o.sessions.update(sessionID, StateFetching, 50)
	rec, err := o.fetchShared(ctx, plateNum, source)
	if err != nil {
		return o.fail(ctx, sessionID, rawPlate, plateNum, source, start, false, err)
	}
	o.sessions.update(sessionID, StateDecomposing, 80)

	return o.succeed(ctx, sessionID, rawPlate, plateNum, source, start, false, rec)
}

// fetchShared collapses concurrent fetches for the same plate and source.
// The shared flight runs on a context detached from the calling request, so
// one caller cancelling does not abort a fetch other waiters share; the
// cancelling caller just stops waiting.
func (o *Orchestrator) fetchShared(ctx context.Context, plateNum plate.Plate, source string) (*vehicle.Record, error) {
	key := string(plateNum) + "|" + source

	ch := o.flight.DoChan(key, func() (any, error) {
		flightCtx := context.WithoutCancel(ctx)
		if o.budget > 0 {
			var cancel context.CancelFunc
			flightCtx, cancel = context.WithTimeout(flightCtx, o.budget)
			defer cancel()
		}
		return o.fetchAndStore(flightCtx, plateNum, source)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*vehicle.Record), nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "query budget exhausted")
		}
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeInternal, "query cancelled")
	}
}

// fetchAndStore is the body of the shared flight: fetch, decompose, write
// through to the cache. A failed decomposition is never cached.
func (o *Orchestrator) fetchAndStore(ctx context.Context, plateNum plate.Plate, source string) (*vehicle.Record, error) {
	raw, err := o.fetcher.Fetch(ctx, string(plateNum), source)
	if err != nil {
		return nil, err
	}

	rec, err := o.decomposer.Decompose(raw)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode record")
	}
	if err := o.cache.Put(ctx, string(plateNum), source, payload, o.ttl); err != nil {
		// The record is still good; serve it and let the next query retry
		// the cache write.
		o.logger.Error("cache write failed", "plate", plateNum, "source", source, "error", err)
	}
	return rec, nil
}

func (o *Orchestrator) succeed(ctx context.Context, sessionID uuid.UUID, rawPlate string, plateNum plate.Plate, source string, start time.Time, fromCache bool, rec *vehicle.Record) *Result {
	elapsed := time.Since(start)
	o.sessions.update(sessionID, StateDone, 100)

	outcome := "fetched"
	if fromCache {
		outcome = "hit"
	}
	o.metrics.RecordQuery(outcome, elapsed)
	o.appendAudit(ctx, &audit.PlateQuery{
		SessionID:     sessionID,
		Plate:         string(plateNum),
		OriginalInput: rawPlate,
		Source:        source,
		Success:       true,
		FromCache:     fromCache,
		ElapsedMs:     elapsed.Milliseconds(),
		CreatedAt:     time.Now(),
	})
	o.logger.Info("plate query completed",
		"plate", plateNum, "source", source, "from_cache", fromCache,
		"elapsed_ms", elapsed.Milliseconds(), "session_id", sessionID)

	return &Result{
		Success:   true,
		Data:      rec,
		FromCache: fromCache,
		ElapsedMs: elapsed.Milliseconds(),
		SessionID: sessionID,
	}
}

func (o *Orchestrator) fail(ctx context.Context, sessionID uuid.UUID, rawPlate string, plateNum plate.Plate, source string, start time.Time, fromCache bool, err error) *Result {
	elapsed := time.Since(start)
	o.sessions.update(sessionID, StateFailed, 100)

	code := dErrors.CodeOf(err)
	o.metrics.RecordQuery("failed", elapsed)
	o.appendAudit(ctx, &audit.PlateQuery{
		SessionID:     sessionID,
		Plate:         string(plateNum),
		OriginalInput: rawPlate,
		Source:        source,
		Success:       false,
		FromCache:     fromCache,
		ElapsedMs:     elapsed.Milliseconds(),
		ErrorMessage:  err.Error(),
		CreatedAt:     time.Now(),
	})
	o.logger.Warn("plate query failed",
		"plate", plateNum, "source", source, "error_code", code,
		"error", err, "elapsed_ms", elapsed.Milliseconds(), "session_id", sessionID)

	return &Result{
		Success:   false,
		Error:     dErrors.MessageOf(err),
		ErrorCode: string(code),
		ElapsedMs: elapsed.Milliseconds(),
		SessionID: sessionID,
	}
}

// appendAudit writes the record even when the request context is already
// cancelled; losing audit rows on caller cancellation would skew the log.
func (o *Orchestrator) appendAudit(ctx context.Context, record *audit.PlateQuery) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Append(context.WithoutCancel(ctx), record); err != nil {
		o.logger.Error("audit append failed", "plate", record.Plate, "error", err)
	}
}

// Invalidate drops the cached entry for a plate after normalizing it.
func (o *Orchestrator) Invalidate(ctx context.Context, rawPlate, source string) error {
	plateNum, err := plate.Normalize(rawPlate)
	if err != nil {
		return err
	}
	if source == "" {
		source = DefaultSource
	}
	return o.cache.Invalidate(ctx, string(plateNum), source)
}

// CacheStats exposes the cache counters.
func (o *Orchestrator) CacheStats(ctx context.Context) (cache.Stats, error) {
	return o.cache.Stats(ctx)
}

// PurgeExpired sweeps expired cache entries and stale progress sessions.
func (o *Orchestrator) PurgeExpired(ctx context.Context) (int, error) {
	o.sessions.prune()
	return o.cache.PurgeExpired(ctx)
}
