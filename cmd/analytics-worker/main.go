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

	"github.com/angelmondragon/campusaid-backend/internal/analytics/router"
	analyticstypes "github.com/angelmondragon/campusaid-backend/internal/analytics/types"
	"github.com/angelmondragon/campusaid-backend/internal/analytics/worker"
	"github.com/angelmondragon/campusaid-backend/internal/analytics/writer"
	"github.com/angelmondragon/campusaid-backend/pkg/bigquery"
	"github.com/angelmondragon/campusaid-backend/pkg/config"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
	"github.com/angelmondragon/campusaid-backend/pkg/metrics"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox/registry"
	"github.com/angelmondragon/campusaid-backend/pkg/pubsub"
	"github.com/angelmondragon/campusaid-backend/pkg/redis"
)

const serviceName = "analytics-worker"

func main() {
	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: serviceName})

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "analytics worker config invalid", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics worker failed", err)
		stop()
		os.Exit(1)
	}
}

// run wires the subscription to the BigQuery sink and blocks until ctx ends.
// Clients opened here are closed before it returns.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeQuietly(ctx, logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer closeQuietly(ctx, logg, "pubsub", pubsubClient.Close)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg, bigquery.TableSpec{
		Name:           cfg.BigQuery.LifecycleEventsTable,
		Schema:         analyticstypes.LifecycleEventsSchema,
		PartitionField: analyticstypes.LifecycleEventsPartitionField,
	})
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	defer closeQuietly(ctx, logg, "bigquery", bqClient.Close)

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}

	claims, err := idempotency.NewManager(
		redisClient,
		cfg.Eventing.ConsumerIdempotencyTTL,
		idempotency.WithLease(cfg.Eventing.ConsumerIdempotencyLease),
	)
	if err != nil {
		return fmt.Errorf("idempotency manager: %w", err)
	}

	sink, err := writer.New(bqClient, writer.Config{LifecycleTable: cfg.BigQuery.LifecycleEventsTable})
	if err != nil {
		return fmt.Errorf("lifecycle writer: %w", err)
	}

	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}
	handler, err := router.NewRouter(sink, events.DecoderRegistry(1), logg)
	if err != nil {
		return fmt.Errorf("analytics router: %w", err)
	}

	consumerMetrics := metrics.NewConsumerMetrics(prometheus.DefaultRegisterer, "analytics")
	service, err := worker.NewService(subscription, handler, claims, consumerMetrics, logg)
	if err != nil {
		return fmt.Errorf("analytics worker: %w", err)
	}

	logg.Info(ctx, "analytics worker ready")
	return service.Run(ctx)
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "client", name), "close failed", err)
	}
}
