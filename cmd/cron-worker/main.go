package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/sourcing-backend/internal/cron"
	"github.com/angelmondragon/sourcing-backend/internal/requirements"
	"github.com/angelmondragon/sourcing-backend/pkg/config"
	"github.com/angelmondragon/sourcing-backend/pkg/db"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
	"github.com/angelmondragon/sourcing-backend/pkg/metrics"
	"github.com/angelmondragon/sourcing-backend/pkg/migrate"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox"
	"github.com/angelmondragon/sourcing-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	only := flag.String("jobs", "", "comma-separated job names for -once (default all)")
	flag.Parse()

	boot := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": serviceKind})

	var names []string
	if *only != "" {
		names = strings.Split(*only, ",")
	}
	if err := run(ctx, cfg, logg, *once, names); err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool, names []string) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeLogged(ctx, logg, "database", dbClient.Close)

	if err := migrate.ApplyOnBoot(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeLogged(ctx, logg, "redis", redisClient.Close)

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		return err
	}
	locker, err := cron.NewRedisLocker(redisClient, "cron-"+cfg.App.Env, cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron locker: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locker:   locker,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	if once {
		logg.Info(logg.WithField(ctx, "jobs", strings.Join(names, ",")), "running single cron cycle")
		return service.RunOnce(ctx, names...)
	}
	ops := metrics.OpsHandler(prometheus.DefaultGatherer, map[string]metrics.Checker{
		"database": dbClient.Ping,
		"redis":    redisClient.Ping,
	})
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return metrics.ServeOps(gctx, ":"+cfg.App.Port, ops) })
	group.Go(func() error {
		logg.Info(logg.WithField(gctx, "jobs", strings.Join(registry.Names(), ",")), "starting cron worker")
		if err := service.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return group.Wait()
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())
	expiry, err := cron.NewRequirementExpiryJob(cron.RequirementExpiryJobParams{
		Logger:       logg,
		DB:           dbClient,
		Requirements: requirements.NewRepository(dbClient.DB()),
		Outbox:       outbox.NewService(outboxRepo, logg),
		Calendar:     requirements.NewCalendar(cfg.App.Location()),
		BatchSize:    cfg.Cron.ExpiryBatchSize,
		Lookback:     cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("expiry job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:       logg,
		Outbox:       outboxRepo,
		DLQ:          outbox.NewDLQRepository(dbClient.DB()),
		Retention:    cfg.Cron.OutboxRetention,
		DLQRetention: cfg.Cron.DLQRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	return cron.NewRegistry(expiry, retention), nil
}

func closeLogged(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}
