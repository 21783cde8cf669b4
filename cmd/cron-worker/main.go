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

	"github.com/angelmondragon/campusaid-backend/internal/cron"
	"github.com/angelmondragon/campusaid-backend/pkg/config"
	"github.com/angelmondragon/campusaid-backend/pkg/db"
	"github.com/angelmondragon/campusaid-backend/pkg/instance"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
	"github.com/angelmondragon/campusaid-backend/pkg/metrics"
	"github.com/angelmondragon/campusaid-backend/pkg/migrate"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox"
	"github.com/angelmondragon/campusaid-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: serviceName})

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "cron worker config invalid", err)
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
		"instance":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker failed", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker stopped")
}

// run schedules the retention jobs behind a Redis lease so only one instance
// sweeps per cycle. It blocks until ctx ends.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeQuietly(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeQuietly(ctx, logg, "redis", redisClient.Close)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), instance.GetID(), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	registry, err := retentionJobs(cfg.Cron, dbClient, logg)
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"interval": cfg.Cron.Interval.String(),
		"jobs":     registry.Names(),
	}), "cron worker started")
	return service.Run(ctx)
}

// retentionJobs builds the outbox and DLQ sweeps, narrowed to cfg.Jobs when set.
func retentionJobs(cfg config.CronConfig, dbClient *db.Client, logg *logger.Logger) (*cron.Registry, error) {
	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.OutboxRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	dlqJob, err := cron.NewDLQRetentionJob(cron.DLQRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewDLQRepository(dbClient.DB()),
		Retention:  cfg.DLQRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("dlq retention job: %w", err)
	}

	registry, err := cron.NewRegistry(outboxJob, dlqJob)
	if err != nil {
		return nil, fmt.Errorf("cron registry: %w", err)
	}
	selected, err := registry.Only(cfg.Jobs)
	if err != nil {
		return nil, fmt.Errorf("cron jobs: %w", err)
	}
	return selected, nil
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "client", name), "close failed", err)
	}
}
