package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/gemcart/internal/cron"
	"github.com/angelmondragon/gemcart/pkg/config"
	"github.com/angelmondragon/gemcart/pkg/instance"
	"github.com/angelmondragon/gemcart/pkg/kv"
	"github.com/angelmondragon/gemcart/pkg/logger"
	"github.com/angelmondragon/gemcart/pkg/metrics"
	"github.com/angelmondragon/gemcart/pkg/redis"
)

const lockKeyFormat = "cron-worker:lock:%s:%s"

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Instance:    instance.GetID(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := kv.Open(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to open storage", err)
		os.Exit(1)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			logg.Error(context.Background(), "error closing storage", err)
		}
	}()

	registry := cron.NewRegistry()
	if storage.SQL != nil {
		job, err := cron.NewTombstonePurgeJob(logg, storage.SQL, cfg.Cron.TombstoneRetention)
		if err != nil {
			logg.Error(ctx, "failed to create tombstone purge job", err)
			os.Exit(1)
		}
		registry.Register(job)
	}
	if storage.File != nil {
		job, err := cron.NewTempFileCleanupJob(logg, storage.File, cfg.Cron.TempFileAge)
		if err != nil {
			logg.Error(ctx, "failed to create temp cleanup job", err)
			os.Exit(1)
		}
		registry.Register(job)
	}
	if registry.Len() == 0 {
		logg.Warn(ctx, "no housekeeping jobs for this storage backend")
		return
	}

	lock, closeLock, err := newLock(ctx, cfg, logg, storage)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}
	defer closeLock()

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"storage": storage.Kind,
		"jobs":    registry.Names(),
		"once":    *once,
	})
	logg.Info(ctx, "starting cron worker")

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron worker run failed", err)
			closeLock()
			os.Exit(1)
		}
		return
	}

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// newLock coordinates replicas through redis when it is configured and
// falls back to a process-local lock otherwise.
func newLock(ctx context.Context, cfg *config.Config, logg *logger.Logger, storage *kv.Opened) (cron.Lock, func(), error) {
	client := storage.Redis
	closeFn := func() {}
	if client == nil && (cfg.Redis.URL != "" || cfg.Redis.Address != "") {
		var err error
		client, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, nil, err
		}
		closeFn = func() {
			if err := client.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}
	}
	if client == nil {
		return &cron.LocalLock{}, closeFn, nil
	}
	lock, err := cron.NewRedisLock(client, lockKey(cfg.App.Env, cfg.Cron.LockKey), cfg.Cron.LockTTL)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return lock, closeFn, nil
}

func lockKey(env, name string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env, name)
}
