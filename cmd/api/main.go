package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/sourcing-backend/api/routes"
	"github.com/angelmondragon/sourcing-backend/internal/negotiation"
	"github.com/angelmondragon/sourcing-backend/internal/orders"
	"github.com/angelmondragon/sourcing-backend/internal/projections"
	"github.com/angelmondragon/sourcing-backend/internal/quotes"
	"github.com/angelmondragon/sourcing-backend/internal/requirements"
	"github.com/angelmondragon/sourcing-backend/pkg/config"
	"github.com/angelmondragon/sourcing-backend/pkg/db"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
	"github.com/angelmondragon/sourcing-backend/pkg/metrics"
	"github.com/angelmondragon/sourcing-backend/pkg/migrate"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox"
	"github.com/angelmondragon/sourcing-backend/pkg/redis"
)

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
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.ApplyOnBoot(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	calendar := requirements.NewCalendar(cfg.App.Location())
	reqRepo := requirements.NewRepository(dbClient.DB())
	quoteRepo := quotes.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())
	publisher := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	requirementService, err := requirements.NewService(reqRepo, dbClient, publisher, calendar)
	if err != nil {
		logg.Error(context.Background(), "failed to create requirements service", err)
		os.Exit(1)
	}
	coordinator, err := negotiation.NewService(negotiation.Deps{
		Requirements: reqRepo,
		Quotes:       quoteRepo,
		Orders:       orderRepo,
		Tx:           dbClient,
		Outbox:       publisher,
		Calendar:     calendar,
		Metrics:      metrics.NewNegotiationMetrics(registry),
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create negotiation service", err)
		os.Exit(1)
	}
	views, err := projections.NewService(reqRepo, quoteRepo, orderRepo, calendar)
	if err != nil {
		logg.Error(context.Background(), "failed to create projections service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
		"timezone": cfg.App.Location().String(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:       cfg,
			Logger:       logg,
			DB:           dbClient,
			Store:        redisClient,
			Gatherer:     registry,
			Requirements: requirementService,
			Negotiation:  coordinator,
			Projections:  views,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logg.Info(ctx, "shutting down api server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
