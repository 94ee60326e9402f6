package query

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ecplacas/internal/audit"
	"ecplacas/internal/cache"
	"ecplacas/internal/ratelimit"
	"ecplacas/internal/registry"
	dErrors "ecplacas/pkg/domain-errors"
)

// fakeFetcher counts upstream calls and can inject latency or failures.
type fakeFetcher struct {
	calls      atomic.Int32
	delay      time.Duration
	err        error
	payload    func() *registry.RawPayload
	lastSource atomic.Value
}

func (f *fakeFetcher) Fetch(ctx context.Context, plateNum, source string) (*registry.RawPayload, error) {
	f.calls.Add(1)
	f.lastSource.Store(source)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.payload(), nil
}

func goodPayload() *registry.RawPayload {
	return &registry.RawPayload{
		Base: registry.BaseVehicle{
			CodigoVehiculo:    42,
			DescripcionMarca:  "KIA",
			AnioAuto:          2020,
			ProhibidoEnajenar: "NO",
			EstadoExoneracion: "NINGUNA",
		},
	}
}

type OrchestratorSuite struct {
	suite.Suite
	ctx     context.Context
	fetcher *fakeFetcher
	store   *cache.MemoryStore
	auditDB *audit.MemoryStore
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctx = context.Background()
	s.fetcher = &fakeFetcher{payload: goodPayload}
	s.store = cache.NewMemoryStore(100)
	s.auditDB = audit.NewMemoryStore()
}

func (s *OrchestratorSuite) newOrchestrator(mutate ...func(*Config)) *Orchestrator {
	cfg := Config{
		Cache:    s.store,
		Fetcher:  s.fetcher,
		Audit:    s.auditDB,
		CacheTTL: time.Hour,
		Budget:   5 * time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return New(cfg)
}

func (s *OrchestratorSuite) TestMissThenHit() {
	orch := s.newOrchestrator()

	first := orch.QueryPlate(s.ctx, "ABC-1234", Options{})
	s.Require().True(first.Success, "error: %s", first.Error)
	s.False(first.FromCache)
	s.Equal("KIA", first.Data.Vehicle.Brand)
	s.Equal(int32(1), s.fetcher.calls.Load())

	second := orch.QueryPlate(s.ctx, "abc 1234", Options{})
	s.Require().True(second.Success)
	s.True(second.FromCache, "same plate in different casing must hit the cache")
	s.Equal("KIA", second.Data.Vehicle.Brand)
	s.Equal(int32(1), s.fetcher.calls.Load(), "cache hit must not call upstream")
	s.NotEqual(first.SessionID, second.SessionID)
}

func (s *OrchestratorSuite) TestSingleFlight() {
	s.fetcher.delay = 100 * time.Millisecond
	orch := s.newOrchestrator()

	const callers = 8
	results := make([]*Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = orch.QueryPlate(s.ctx, "ABC1234", Options{})
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		s.Require().True(res.Success)
		s.Equal("KIA", res.Data.Vehicle.Brand)
	}
	s.Equal(int32(1), s.fetcher.calls.Load(), "concurrent callers must share one fetch")
}

func (s *OrchestratorSuite) TestInvalidFormatShortCircuits() {
	orch := s.newOrchestrator()

	res := orch.QueryPlate(s.ctx, "!!", Options{})
	s.Require().False(res.Success)
	s.Equal(string(dErrors.CodeInvalidFormat), res.ErrorCode)
	s.Zero(s.fetcher.calls.Load(), "invalid input must not reach upstream")

	stats, err := s.store.Stats(s.ctx)
	s.Require().NoError(err)
	s.Zero(stats.Entries)
}

func (s *OrchestratorSuite) TestSourceReachesFetcher() {
	orch := s.newOrchestrator()

	s.Require().True(orch.QueryPlate(s.ctx, "ABC1234", Options{}).Success)
	s.Equal(DefaultSource, s.fetcher.lastSource.Load(), "empty source defaults before the fetch")

	s.Require().True(orch.QueryPlate(s.ctx, "ABC1234", Options{Source: "mirror"}).Success)
	s.Equal("mirror", s.fetcher.lastSource.Load())
	s.Equal(int32(2), s.fetcher.calls.Load(), "sources are cached independently")
}

func (s *OrchestratorSuite) TestForceRefresh() {
	orch := s.newOrchestrator()

	s.Require().True(orch.QueryPlate(s.ctx, "ABC1234", Options{}).Success)
	res := orch.QueryPlate(s.ctx, "ABC1234", Options{ForceRefresh: true})
	s.Require().True(res.Success)
	s.False(res.FromCache)
	s.Equal(int32(2), s.fetcher.calls.Load(), "force refresh bypasses the cache read")

	// The refreshed record was written back.
	hit := orch.QueryPlate(s.ctx, "ABC1234", Options{})
	s.True(hit.FromCache)
}

func (s *OrchestratorSuite) TestRateLimited() {
	orch := s.newOrchestrator(func(cfg *Config) {
		cfg.Limiter = ratelimit.New(1, time.Hour)
	})

	first := orch.QueryPlate(s.ctx, "ABC1234", Options{ClientKey: "10.0.0.1"})
	s.Require().True(first.Success)

	second := orch.QueryPlate(s.ctx, "XYZ0999", Options{ClientKey: "10.0.0.1"})
	s.Require().False(second.Success)
	s.Equal(string(dErrors.CodeRateLimited), second.ErrorCode)
	s.Equal(int32(1), s.fetcher.calls.Load(), "rejected query must not reach upstream")

	// A cached plate stays servable even when the quota is gone.
	hit := orch.QueryPlate(s.ctx, "ABC1234", Options{ClientKey: "10.0.0.1"})
	s.True(hit.Success)
	s.True(hit.FromCache)
}

func (s *OrchestratorSuite) TestUpstreamFailureIsNotCached() {
	s.fetcher.err = dErrors.New(dErrors.CodeUpstreamUnavailable, "registry down")
	orch := s.newOrchestrator()

	res := orch.QueryPlate(s.ctx, "ABC1234", Options{})
	s.Require().False(res.Success)
	s.Equal(string(dErrors.CodeUpstreamUnavailable), res.ErrorCode)

	stats, err := s.store.Stats(s.ctx)
	s.Require().NoError(err)
	s.Zero(stats.Entries, "failures must not populate the cache")

	s.fetcher.err = nil
	retry := orch.QueryPlate(s.ctx, "ABC1234", Options{})
	s.True(retry.Success)
	s.Equal(int32(2), s.fetcher.calls.Load())
}

func (s *OrchestratorSuite) TestMalformedPayloadIsNotCached() {
	s.fetcher.payload = func() *registry.RawPayload { return &registry.RawPayload{} }
	orch := s.newOrchestrator()

	res := orch.QueryPlate(s.ctx, "ABC1234", Options{})
	s.Require().False(res.Success)
	s.Equal(string(dErrors.CodeDataError), res.ErrorCode)

	stats, err := s.store.Stats(s.ctx)
	s.Require().NoError(err)
	s.Zero(stats.Entries)
}

func (s *OrchestratorSuite) TestBudgetExhaustion() {
	s.fetcher.delay = 300 * time.Millisecond
	orch := s.newOrchestrator(func(cfg *Config) {
		cfg.Budget = 50 * time.Millisecond
	})

	res := orch.QueryPlate(s.ctx, "ABC1234", Options{})
	s.Require().False(res.Success)
	s.Equal(string(dErrors.CodeTimeout), res.ErrorCode)
}

func (s *OrchestratorSuite) TestAuditTrail() {
	orch := s.newOrchestrator()

	res := orch.QueryPlate(s.ctx, "ABC-1234", Options{})
	s.Require().True(res.Success)

	record, err := s.auditDB.FindBySession(s.ctx, res.SessionID)
	s.Require().NoError(err)
	s.Equal("ABC1234", record.Plate)
	s.Equal("ABC-1234", record.OriginalInput)
	s.Equal(DefaultSource, record.Source)
	s.True(record.Success)

	bad := orch.QueryPlate(s.ctx, "??", Options{})
	s.Require().False(bad.Success)
	failure, err := s.auditDB.FindBySession(s.ctx, bad.SessionID)
	s.Require().NoError(err)
	s.False(failure.Success)
	s.NotEmpty(failure.ErrorMessage)
}

func (s *OrchestratorSuite) TestProgressLifecycle() {
	orch := s.newOrchestrator()

	res := orch.QueryPlate(s.ctx, "ABC1234", Options{})
	s.Require().True(res.Success)

	progress, err := orch.Progress(res.SessionID)
	s.Require().NoError(err)
	s.Equal(StateDone, progress.State)
	s.Equal(100, progress.Percent)

	hit := orch.QueryPlate(s.ctx, "ABC1234", Options{})
	progress, err = orch.Progress(hit.SessionID)
	s.Require().NoError(err)
	s.Equal(StateDone, progress.State)
	s.Equal(100, progress.Percent)
}

func (s *OrchestratorSuite) TestCacheManagement() {
	orch := s.newOrchestrator()

	s.Require().True(orch.QueryPlate(s.ctx, "ABC1234", Options{}).Success)

	stats, err := orch.CacheStats(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, stats.Entries)

	s.Require().NoError(orch.Invalidate(s.ctx, "abc-1234", ""))
	miss := orch.QueryPlate(s.ctx, "ABC1234", Options{})
	s.Require().True(miss.Success)
	s.False(miss.FromCache)
	s.Equal(int32(2), s.fetcher.calls.Load())

	removed, err := orch.PurgeExpired(s.ctx)
	s.Require().NoError(err)
	s.Zero(removed)
}
