package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultLease bounds how long an unfinished claim blocks redeliveries of the
// same event.
const DefaultLease = 2 * time.Minute

const (
	markerInFlight = "processing"
	markerDone     = "done"
)

// State is the outcome of Claim.
type State int

const (
	// Claimed means the caller owns the event and must Complete or Release it.
	Claimed State = iota
	// InFlight means another consumer holds an unexpired lease.
	InFlight
	// Done means the event was already processed.
	Done
)

func (s State) String() string {
	switch s {
	case Claimed:
		return "claimed"
	case InFlight:
		return "in_flight"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type claimStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager de-duplicates event deliveries per consumer in two steps: a short lease
// while the handler runs, then a done marker kept for the full TTL. A consumer
// that dies mid-event loses its lease and the event is handled again.
// Keys follow `ca:idempotency:evt:processed:<consumer>:<event_id>`.
type Manager struct {
	store claimStore
	ttl   time.Duration
	lease time.Duration
}

// Option tunes a Manager.
type Option func(*Manager)

// WithLease overrides DefaultLease. Non-positive values are ignored.
func WithLease(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.lease = d
		}
	}
}

// NewManager builds a guard that remembers completed events for ttl.
func NewManager(store claimStore, ttl time.Duration, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	m := &Manager{store: store, ttl: ttl, lease: DefaultLease}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Claim tries to take the lease on eventID for consumer.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (State, error) {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return InFlight, err
	}
	ok, err := m.store.SetNX(ctx, key, markerInFlight, m.lease)
	if err != nil {
		return InFlight, err
	}
	if ok {
		return Claimed, nil
	}

	marker, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// lease expired between the two calls
		return InFlight, nil
	case err != nil:
		return InFlight, err
	case marker == markerInFlight:
		return InFlight, nil
	}
	return Done, nil
}

// Complete replaces the lease with the done marker.
func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, markerDone, m.ttl)
}

// Release drops the lease so a redelivery can be processed again.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) processedKey(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, eventID.String()), nil
}
