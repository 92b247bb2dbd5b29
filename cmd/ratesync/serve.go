package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/damon-houk/rate-sync-client/internal/application/service"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/connectivity"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/handler"
	"github.com/damon-houk/rate-sync-client/internal/infrastructure/middleware"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the refresh scheduler and the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *envFile)
		},
	}
}

func runServe(parent context.Context, envFile string) error {
	cfg, log, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting rate sync client", map[string]interface{}{
		"api":  cfg.API.BaseURL,
		"base": cfg.Sync.Base,
		"addr": cfg.Server.Addr,
	})

	a, err := newApp(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer a.Close()

	schedule, err := service.ParseSchedule(cfg.Sync.Schedule, cfg.Sync.RefreshInterval)
	if err != nil {
		return err
	}

	probe, err := connectivity.DialProbe(cfg.API.BaseURL, cfg.API.DialTimeout)
	if err != nil {
		return err
	}

	board := service.NewRateBoard(cfg.Sync.Targets, log)
	scheduler := service.NewRefreshScheduler(a.syncer, a.monitor, board, schedule, cfg.Sync.Base, log)

	router := mux.NewRouter()
	router.Use(
		middleware.RequestIDMiddleware,
		middleware.LoggingMiddleware(log),
		middleware.MetricsMiddleware,
		middleware.RecoveryMiddleware(log),
	)
	handler.NewRatesHandler(board, scheduler, a.syncer, a.monitor, log).RegisterRoutes(router)
	if cfg.Cache.AssetBaseURL != "" {
		handler.NewAssetHandler(a.client, cfg.Cache.AssetBaseURL, log).RegisterRoutes(router)
	}
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server listening", map[string]interface{}{"addr": cfg.Server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return ignoreCanceled(a.monitor.Run(gctx, probe, cfg.API.ProbeInterval))
	})

	g.Go(func() error {
		return ignoreCanceled(scheduler.Run(gctx))
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("Shutting down", nil)
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
