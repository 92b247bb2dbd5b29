package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/dgraph-io/badger/v3"

	"github.com/damon-houk/rate-sync-client/internal/application/service"
	"github.com/damon-houk/rate-sync-client/internal/config"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/api"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/cache"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/connectivity"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/db"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/logger"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/proxy"
)

// app holds the components shared by every command
type app struct {
	cfg     *config.Config
	log     logger.Logger
	db      *badger.DB
	proxy   *proxy.CacheProxy
	client  *http.Client
	monitor *connectivity.Monitor
	syncer  *service.RateSyncService
}

func loadConfig(envFile string) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}

	level, err := logger.ParseLevel(cfg.LogConfig.Level)
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewJSONLogger(os.Stdout, level)
	logger.SetDefaultLogger(log)

	return cfg, log, nil
}

// newApp opens the cache store and wires the sync path through the cache proxy.
// withAssets pre-populates the static partition before activation.
func newApp(ctx context.Context, cfg *config.Config, log logger.Logger, withAssets bool) (*app, error) {
	if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	badgerOpts := badger.DefaultOptions(cfg.Cache.Dir)
	badgerOpts.Logger = nil

	badgerDB, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	a, err := wire(ctx, cfg, log, badgerDB, withAssets)
	if err != nil {
		badgerDB.Close()
		return nil, err
	}
	return a, nil
}

func wire(ctx context.Context, cfg *config.Config, log logger.Logger, badgerDB *badger.DB, withAssets bool) (*app, error) {
	apiURL, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	transport, err := api.NewTransport(cfg.API.DialTimeout)
	if err != nil {
		return nil, err
	}

	proxyCfg := proxy.Config{
		Version:  cfg.Cache.Version,
		APIHosts: []string{apiURL.Host},
	}
	if withAssets {
		proxyCfg.StaticAssets = cfg.Cache.StaticAssets
	}

	cacheProxy := proxy.NewCacheProxy(transport, db.NewBadgerCacheRepository(badgerDB), proxyCfg, log)
	if err := cacheProxy.Install(ctx); err != nil {
		return nil, fmt.Errorf("cache proxy install failed: %w", err)
	}
	if err := cacheProxy.Activate(ctx); err != nil {
		return nil, fmt.Errorf("cache proxy activation failed: %w", err)
	}

	client := &http.Client{Transport: cacheProxy}
	monitor := connectivity.NewMonitor(true, log)

	syncer := service.NewRateSyncService(
		api.NewRateAPIClient(cfg.API.BaseURL, client, log),
		cache.NewSnapshotStore(),
		monitor,
		cfg.Sync.Timeout,
		log,
	)

	return &app{
		cfg:     cfg,
		log:     log,
		db:      badgerDB,
		proxy:   cacheProxy,
		client:  client,
		monitor: monitor,
		syncer:  syncer,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Error("Error closing cache store", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
