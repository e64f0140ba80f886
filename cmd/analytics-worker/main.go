package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/sourcing-backend/internal/analytics/router"
	"github.com/angelmondragon/sourcing-backend/internal/analytics/types"
	"github.com/angelmondragon/sourcing-backend/internal/analytics/worker"
	"github.com/angelmondragon/sourcing-backend/internal/analytics/writer"
	"github.com/angelmondragon/sourcing-backend/pkg/bigquery"
	"github.com/angelmondragon/sourcing-backend/pkg/config"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
	"github.com/angelmondragon/sourcing-backend/pkg/metrics"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/sourcing-backend/pkg/pubsub"
	"github.com/angelmondragon/sourcing-backend/pkg/redis"
)

const serviceKind = "analytics-worker"

func main() {
	_ = godotenv.Load()

	boot := logger.New(logger.Options{ServiceName: serviceKind})
	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "config invalid", err)
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

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "analytics worker stopped", err)
		os.Exit(1)
	}
}

// run wires the consumer and blocks until ctx is canceled. Resources opened
// here are closed in reverse order on the way out.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()
	onExit := func(name string, closeFn func() error) {
		closers = append(closers, func() {
			if err := closeFn(); err != nil {
				logg.Error(ctx, "close "+name, err)
			}
		})
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	onExit("redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg,
		pubsub.WithSubscriptions(cfg.PubSub.AnalyticsSubscription))
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	onExit("pubsub", pubsubClient.Close)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg,
		types.NegotiationEventsTable(cfg.BigQuery.NegotiationsTable))
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	onExit("bigquery", bqClient.Close)

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}
	if cfg.PubSub.AnalyticsMaxOutstanding > 0 {
		subscription.ReceiveSettings.MaxOutstandingMessages = cfg.PubSub.AnalyticsMaxOutstanding
	}

	ledger, err := idempotency.NewLedger(redisClient, cfg.Eventing.OutboxIdempotencyTTL, cfg.Eventing.ClaimTTL)
	if err != nil {
		return fmt.Errorf("idempotency ledger: %w", err)
	}
	analyticsWriter, err := writer.New(bqClient, cfg.BigQuery)
	if err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	handler, err := router.NewRouter(analyticsWriter, logg)
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}
	service, err := worker.NewService(subscription, handler, ledger, logg,
		metrics.NewConsumerMetrics(prometheus.DefaultRegisterer, worker.ConsumerName))
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	ops := metrics.OpsHandler(prometheus.DefaultGatherer, map[string]metrics.Checker{
		"redis":    redisClient.Ping,
		"pubsub":   pubsubClient.Ping,
		"bigquery": bqClient.Ping,
	})
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return metrics.ServeOps(gctx, ":"+cfg.App.Port, ops) })
	group.Go(func() error {
		logg.Info(gctx, "analytics worker ready")
		if err := service.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return group.Wait()
}
