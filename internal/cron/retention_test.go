package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/pkg/logger"
)

func TestRetentionJobCutoffs(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	testLogger := logger.New(logger.Options{ServiceName: "test"})

	tests := []struct {
		name       string
		build      func(repo *fakeRetentionRepo) (Job, error)
		wantName   string
		wantCutoff time.Time
		wantSweep  string
	}{
		{
			name: "outbox default window",
			build: func(repo *fakeRetentionRepo) (Job, error) {
				return NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: testLogger, DB: retentionTxRunner{}, Repository: repo})
			},
			wantName:   "outbox-retention",
			wantCutoff: now.Add(-defaultOutboxRetention),
			wantSweep:  "published",
		},
		{
			name: "outbox configured window",
			build: func(repo *fakeRetentionRepo) (Job, error) {
				return NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: testLogger, DB: retentionTxRunner{}, Repository: repo, Retention: 48 * time.Hour})
			},
			wantName:   "outbox-retention",
			wantCutoff: time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC),
			wantSweep:  "published",
		},
		{
			name: "dlq default window",
			build: func(repo *fakeRetentionRepo) (Job, error) {
				return NewDLQRetentionJob(DLQRetentionJobParams{Logger: testLogger, DB: retentionTxRunner{}, Repository: repo})
			},
			wantName:   "dlq-retention",
			wantCutoff: now.Add(-defaultDLQRetention),
			wantSweep:  "failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRetentionRepo{}
			job, err := tt.build(repo)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			job.(*retentionJob).now = func() time.Time { return now }

			if err := job.Run(context.Background()); err != nil {
				t.Fatalf("run: %v", err)
			}
			if job.Name() != tt.wantName {
				t.Fatalf("expected name %s got %s", tt.wantName, job.Name())
			}
			if !repo.lastCutoff.Equal(tt.wantCutoff) {
				t.Fatalf("expected cutoff %s, got %s", tt.wantCutoff, repo.lastCutoff)
			}
			if repo.swept != tt.wantSweep || repo.called != 1 {
				t.Fatalf("expected one %s sweep, got %d %q", tt.wantSweep, repo.called, repo.swept)
			}
		})
	}
}

func TestRetentionJobWrapsSweepError(t *testing.T) {
	repo := &fakeRetentionRepo{err: errors.New("db down")}
	job, err := NewDLQRetentionJob(DLQRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         retentionTxRunner{},
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	err = job.Run(context.Background())
	if !errors.Is(err, repo.err) || !strings.HasPrefix(err.Error(), "dlq-retention:") {
		t.Fatalf("expected wrapped sweep error, got %v", err)
	}
}

func TestRetentionJobsRequireDependencies(t *testing.T) {
	testLogger := logger.New(logger.Options{ServiceName: "test"})
	repo := &fakeRetentionRepo{}

	if _, err := NewOutboxRetentionJob(OutboxRetentionJobParams{DB: retentionTxRunner{}, Repository: repo}); err == nil {
		t.Fatal("expected error without logger")
	}
	if _, err := NewDLQRetentionJob(DLQRetentionJobParams{Logger: testLogger, Repository: repo}); err == nil {
		t.Fatal("expected error without db")
	}
	if _, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: testLogger, DB: retentionTxRunner{}}); err == nil {
		t.Fatal("expected error without repository")
	}
}

type fakeRetentionRepo struct {
	lastCutoff time.Time
	called     int
	swept      string
	err        error
}

func (f *fakeRetentionRepo) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	return f.record("published", cutoff)
}

func (f *fakeRetentionRepo) DeleteFailedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	return f.record("failed", cutoff)
}

func (f *fakeRetentionRepo) record(kind string, cutoff time.Time) (int64, error) {
	f.called++
	f.swept = kind
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

type retentionTxRunner struct{}

func (retentionTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
