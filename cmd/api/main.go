package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/gemcart/api/routes"
	"github.com/angelmondragon/gemcart/internal/catalog"
	"github.com/angelmondragon/gemcart/internal/checkout"
	"github.com/angelmondragon/gemcart/internal/cron"
	"github.com/angelmondragon/gemcart/internal/profile"
	"github.com/angelmondragon/gemcart/pkg/config"
	"github.com/angelmondragon/gemcart/pkg/instance"
	"github.com/angelmondragon/gemcart/pkg/kv"
	"github.com/angelmondragon/gemcart/pkg/logger"
	"github.com/angelmondragon/gemcart/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Instance:    instance.GetID(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	products, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logg.Error(ctx, "failed to load catalog", err)
		os.Exit(1)
	}

	storage, err := kv.Open(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to open storage", err)
		os.Exit(1)
	}

	root := kv.NewAdapter(storage.Backend, kv.WithLogger(logg), kv.WithMetrics(metrics.NewStoreMetrics(reg)))
	profiles := profile.NewRegistry(root, profile.WithCloser(storage.Close))
	defer func() {
		if err := profiles.Close(); err != nil {
			logg.Error(context.Background(), "error closing profiles", err)
		}
	}()

	housekeeping, err := newHousekeeping(cfg, logg, profiles, metrics.NewJobMetrics(reg))
	if err != nil {
		logg.Error(ctx, "failed to create housekeeping", err)
		os.Exit(1)
	}
	go func() {
		if err := housekeeping.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "housekeeping stopped unexpectedly", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"storage": storage.Kind,
	})
	logg.Info(ctx, "starting api server")

	composer := checkout.WhatsAppComposer{Phone: cfg.Checkout.WhatsAppPhone, StoreName: cfg.Checkout.StoreName}
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, storage.Backend, reg, products, profiles, composer),
		ReadHeaderTimeout: 10 * time.Second,
		// event streams end when the base context is canceled
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shutting down gracefully")
	}
}

// newHousekeeping runs in-process jobs. Loaded profiles belong to this
// process, so a local lock is enough.
func newHousekeeping(cfg *config.Config, logg *logger.Logger, profiles *profile.Registry, jobMetrics *metrics.JobMetrics) (*cron.Service, error) {
	eviction, err := cron.NewProfileEvictionJob(logg, profiles, cfg.Cron.ProfileIdle)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(eviction),
		Lock:     &cron.LocalLock{},
		Metrics:  jobMetrics,
		Interval: cfg.Cron.Interval,
	})
}
