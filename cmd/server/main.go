package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"ecplacas/internal/audit"
	"ecplacas/internal/cache"
	"ecplacas/internal/platform/config"
	"ecplacas/internal/platform/httpserver"
	"ecplacas/internal/platform/logger"
	"ecplacas/internal/platform/metrics"
	"ecplacas/internal/platform/redis"
	"ecplacas/internal/query"
	"ecplacas/internal/ratelimit"
	"ecplacas/internal/registry"
	httptransport "ecplacas/internal/transport/http"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cache backend: Redis when configured, otherwise in-process.
	var cacheStore cache.Store
	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cacheStore = cache.NewRedisStore(redisClient, cfg.CacheMaxEntries, m)
		log.Info("using redis cache", "max_entries", cfg.CacheMaxEntries)
	} else {
		cacheStore = cache.NewMemoryStore(cfg.CacheMaxEntries, cache.WithMetrics(m))
		log.Info("using in-memory cache", "max_entries", cfg.CacheMaxEntries)
	}

	// Audit backend: Postgres when configured, otherwise in-process.
	var auditStore audit.Store
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}
		pg := audit.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("audit schema migration failed", "error", err)
			os.Exit(1)
		}
		async := audit.NewAsyncStore(pg, 256, log)
		go async.Run(ctx)
		defer async.Wait()
		auditStore = async
		log.Info("using postgres audit store")
	} else {
		auditStore = audit.NewMemoryStore()
		log.Info("using in-memory audit store")
	}

	fetcher := registry.New(registry.Config{
		BaseURL:    cfg.RegistryBaseURL,
		OwnerURL:   cfg.OwnerAPIURL,
		Timeout:    cfg.QueryTimeout,
		MaxRetries: cfg.MaxRetries,
		RetryWait:  cfg.RetryBackoff,
		Logger:     log,
		Metrics:    m,
	})

	limiter := ratelimit.New(cfg.MaxQueriesPerHour, time.Hour, ratelimit.WithMetrics(m))

	orchestrator := query.New(query.Config{
		Cache:    cacheStore,
		Fetcher:  fetcher,
		Limiter:  limiter,
		Audit:    auditStore,
		Logger:   log,
		Metrics:  m,
		CacheTTL: cfg.CacheTTL,
		Budget:   cfg.QueryBudget(),
	})

	// Periodic sweep of expired cache entries and stale progress sessions.
	go func() {
		ticker := time.NewTicker(cfg.CacheSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := orchestrator.PurgeExpired(ctx)
				if err != nil {
					log.Warn("cache sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					log.Info("cache sweep", "removed", removed)
				}
			}
		}
	}()

	handler := httptransport.NewHandler(orchestrator, auditStore, log)
	router := httptransport.NewRouter(handler, log)
	srv := httpserver.New(cfg.HTTPAddr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
