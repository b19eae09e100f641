package main

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/pricelens/backend/config"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/cache"
	"github.com/pricelens/backend/internal/infrastructure/scraper"
	"github.com/pricelens/backend/internal/logger"
	"github.com/pricelens/backend/internal/usecase"
	"go.uber.org/zap"
)

// app is the wired application stack shared by every command
type app struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	cache    domain.ResultCache
	analysis *usecase.AnalysisService
	closers  []io.Closer
}

// newApp builds the cache, acquirer, orchestrator, coordinator and service
// selected by cfg.
func newApp(cfg *config.Config, log *zap.SugaredLogger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	resultCache, err := a.buildCache()
	if err != nil {
		return nil, err
	}
	a.cache = resultCache

	acquirer, err := a.buildAcquirer()
	if err != nil {
		a.Close()
		return nil, err
	}

	orchestrator := usecase.NewOrchestrator(acquirer, usecase.OrchestratorConfig{
		Policy: usecase.RetryPolicy{
			MaxRetries: cfg.Acquisition.MaxRetries,
			BaseDelay:  cfg.Acquisition.BaseDelay,
			Timeout:    cfg.Acquisition.Timeout,
		},
		RateLimitPatterns: cfg.Acquisition.RateLimitPatterns,
		RequestsPerMinute: cfg.Acquisition.RequestsPerMinute,
	}, logger.Named(log, "orchestrator"))

	coordinator := usecase.NewCoordinator(orchestrator, logger.Named(log, "coordinator"))

	a.analysis = usecase.NewAnalysisService(resultCache, coordinator, usecase.AnalysisServiceConfig{
		MarketplaceHosts: cfg.Marketplace.Hosts,
		ReviewLimit:      cfg.Marketplace.ReviewLimit,
	}, logger.Named(log, "analysis"))

	return a, nil
}

func (a *app) buildCache() (domain.ResultCache, error) {
	cacheLog := logger.Named(a.log, "cache")
	c := a.cfg.Cache

	switch c.Type {
	case config.CacheSQLite:
		sqliteCache, err := cache.NewSQLiteCache(c.SQLitePath, c.TTL, c.MaxEntries, cacheLog)
		if err != nil {
			return nil, errors.Wrapf(err, "open sqlite cache at %s", c.SQLitePath)
		}
		a.closers = append(a.closers, sqliteCache)
		return sqliteCache, nil
	case config.CacheMemory:
		return cache.NewMemoryCache(c.TTL, c.MaxEntries, cacheLog), nil
	default:
		return nil, errors.Newf("unsupported cache type %q", c.Type)
	}
}

func (a *app) buildAcquirer() (domain.Acquirer, error) {
	acq := a.cfg.Acquisition

	switch acq.Mode {
	case config.ModeRemote:
		return scraper.NewRemoteAcquirer(acq.RemoteURL), nil
	case config.ModeProcess:
		return scraper.NewProcessAcquirer(acq.ProductCommand, acq.ReviewsCommand, logger.Named(a.log, "scraper"))
	default:
		return nil, errors.Newf("unsupported acquisition mode %q", acq.Mode)
	}
}

// startJanitor sweeps the in-memory cache until ctx ends. Persistent
// caches are swept on Put and Stats.
func (a *app) startJanitor(ctx context.Context) {
	if memoryCache, ok := a.cache.(*cache.MemoryCache); ok {
		memoryCache.StartJanitor(ctx, a.cfg.Cache.SweepInterval)
	}
}

// Close releases resources held by the stack
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warnw("close failed", logger.FieldError, err)
		}
	}
	a.closers = nil
}
