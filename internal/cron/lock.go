package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 10 * time.Minute

// Lock hands out at most one lease at a time across every cron worker
// sharing the backing key.
type Lock interface {
	Acquire(ctx context.Context) (Lease, bool, error)
}

// Lease is a held lock. Release is safe to call more than once.
type Lease interface {
	Owner() string
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock stores the lease owner under key with a TTL so a crashed worker
// cannot block the schedule forever.
type RedisLock struct {
	store  lockStore
	key    string
	ttl    time.Duration
	holder string
}

// NewRedisLock builds a lock. holder prefixes every lease owner (typically
// the instance id) so the current holder is identifiable in Redis and logs.
func NewRedisLock(store lockStore, key, holder string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if holder == "" {
		holder = "cron"
	}
	return &RedisLock{store: store, key: key, ttl: ttl, holder: holder}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (Lease, bool, error) {
	owner := l.holder + ":" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{lock: l, owner: owner}, true, nil
}

// Holder reports the owner of the current lease, or "" when the lock is free.
func (l *RedisLock) Holder(ctx context.Context) (string, error) {
	value, err := l.store.Get(ctx, l.key)
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

type redisLease struct {
	lock     *RedisLock
	owner    string
	released bool
}

func (r *redisLease) Owner() string { return r.owner }

// Release deletes the key only while it still carries this lease's owner;
// an expired lease never frees a successor's lock.
func (r *redisLease) Release(ctx context.Context) error {
	if r.released {
		return nil
	}
	current, err := r.lock.Holder(ctx)
	if err != nil {
		return fmt.Errorf("read lock owner: %w", err)
	}
	r.released = true
	if current != r.owner {
		return nil
	}
	if err := r.lock.store.Del(ctx, r.lock.key); err != nil {
		r.released = false
		return fmt.Errorf("release %s: %w", r.lock.key, err)
	}
	return nil
}
