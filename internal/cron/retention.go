package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
)

// sweepFunc deletes rows older than cutoff and reports how many went.
type sweepFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type dlqRetentionRepo interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	Retention  time.Duration
}

type DLQRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository dlqRetentionRepo
	Retention  time.Duration
}

// NewOutboxRetentionJob prunes published outbox rows. Pending and failed rows
// are never touched. Retention defaults to 30 days.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	return newRetentionJob("outbox-retention", params.Logger, params.DB,
		orDefault(params.Retention, defaultOutboxRetention), params.Repository.DeletePublishedBefore)
}

// NewDLQRetentionJob drops dead letters older than the window, 90 days by default.
func NewDLQRetentionJob(params DLQRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, errors.New("dlq repository required")
	}
	return newRetentionJob("dlq-retention", params.Logger, params.DB,
		orDefault(params.Retention, defaultDLQRetention), params.Repository.DeleteFailedBefore)
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	sweep     sweepFunc
	retention time.Duration
	now       func() time.Time
}

func newRetentionJob(name string, logg *logger.Logger, db txRunner, retention time.Duration, sweep sweepFunc) (Job, error) {
	switch {
	case logg == nil:
		return nil, fmt.Errorf("%s: logger required", name)
	case db == nil:
		return nil, fmt.Errorf("%s: db runner required", name)
	}
	return &retentionJob{name: name, logg: logg, db: db, sweep: sweep, retention: retention, now: time.Now}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		deleted, err = j.sweep(ctx, tx, cutoff)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	}), "cron.retention_swept")
	return nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
