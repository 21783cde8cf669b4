package client

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/campusaid-backend/pkg/logger"
)

const defaultPollInterval = 15 * time.Second

// Snapshot is the pending-notification state observed on one tick.
type Snapshot struct {
	Items     []Notification
	Badge     int64
	FetchedAt time.Time
}

type notificationSource interface {
	Notifications(ctx context.Context) ([]Notification, error)
}

// PollerParams configures a Poller. OnSnapshot runs on the poller goroutine.
type PollerParams struct {
	Source     notificationSource
	Interval   time.Duration
	OnSnapshot func(Snapshot)
	Logger     *logger.Logger
	Now        func() time.Time
}

// Poller refreshes the pending notifications on a fixed interval until its
// context is cancelled. A failed fetch is logged and retried on the next tick.
type Poller struct {
	source     notificationSource
	interval   time.Duration
	onSnapshot func(Snapshot)
	logg       *logger.Logger
	now        func() time.Time
}

func NewPoller(params PollerParams) (*Poller, error) {
	if params.Source == nil {
		return nil, errors.New("notification source required")
	}
	if params.OnSnapshot == nil {
		return nil, errors.New("snapshot callback required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Poller{
		source:     params.Source,
		interval:   interval,
		onSnapshot: params.OnSnapshot,
		logg:       params.Logger,
		now:        now,
	}, nil
}

// Run polls immediately, then every interval. It returns ctx.Err() on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.poll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	items, err := p.source.Notifications(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if p.logg != nil {
			p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "notifications.poll_failed")
		}
		return
	}
	p.onSnapshot(Snapshot{
		Items:     items,
		Badge:     int64(len(items)),
		FetchedAt: p.now(),
	})
}
