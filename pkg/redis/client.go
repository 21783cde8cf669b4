package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/campusaid-backend/pkg/config"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
)

// DefaultKeyspace prefixes every key written by campusaid services.
const DefaultKeyspace Keyspace = "ca"

var (
	errNoEndpoint     = errors.New("redis url or address is required")
	errNotInitialized = errors.New("redis client not initialized")
)

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	GetDel(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Incr(context.Context, string) *redis.IntCmd
	ExpireNX(context.Context, string, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// IdempotencyStore is what the HTTP Idempotency-Key replay needs.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	Set(context.Context, string, any, time.Duration) error
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// Keyspace builds keys of the form `<keyspace>:<kind>:<parts...>`. Blank parts
// are dropped. The zero value uses DefaultKeyspace.
type Keyspace string

// IdempotencyKey namespaces HTTP replay records and consumer claims.
func (k Keyspace) IdempotencyKey(scope, id string) string {
	return k.join("idempotency", scope, id)
}

// RateLimitKey namespaces fixed-window counters.
func (k Keyspace) RateLimitKey(scope string) string {
	return k.join("rate_limit", scope)
}

// AccessSessionKey namespaces the refresh-token record of one access session.
func (k Keyspace) AccessSessionKey(accessID string) string {
	return k.join("session", "access", accessID)
}

// LockKey namespaces cron leases.
func (k Keyspace) LockKey(name string) string {
	return k.join("lock", name)
}

func (k Keyspace) join(parts ...string) string {
	root := strings.TrimSpace(string(k))
	if root == "" {
		root = string(DefaultKeyspace)
	}
	var b strings.Builder
	b.WriteString(root)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

// Client is the campusaid Redis handle: sessions, idempotency, rate limits and
// cron leases all go through it.
type Client struct {
	Keyspace

	store cmdable
	conn  *redis.Client
}

// New dials Redis from cfg and pings it before returning.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	conn := redis.NewClient(opts)
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"addr":      opts.Addr,
			"db":        opts.DB,
			"pool_size": opts.PoolSize,
		}), "redis.connected")
	}
	return &Client{Keyspace: DefaultKeyspace, store: conn, conn: conn}, nil
}

// optionsFromConfig prefers the URL form. Settings the URL leaves unset are
// filled from the discrete config fields.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case strings.TrimSpace(cfg.URL) != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case strings.TrimSpace(cfg.Address) != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password}
	default:
		return nil, errNoEndpoint
	}

	fallback(&opts.DB, cfg.DB)
	fallback(&opts.PoolSize, cfg.PoolSize)
	fallback(&opts.MinIdleConns, cfg.MinIdleConns)
	fallback(&opts.DialTimeout, cfg.DialTimeout)
	fallback(&opts.ReadTimeout, cfg.ReadTimeout)
	fallback(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fallback[T comparable](dst *T, value T) {
	var zero T
	if *dst == zero {
		*dst = value
	}
}

func (c *Client) cmd() (cmdable, error) {
	if c == nil || c.store == nil {
		return nil, errNotInitialized
	}
	return c.store, nil
}

// Set writes value at key. A zero ttl keeps the key until deleted.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	store, err := c.cmd()
	if err != nil {
		return err
	}
	return store.Set(ctx, key, value, ttl).Err()
}

// Get returns redis.Nil when key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	store, err := c.cmd()
	if err != nil {
		return "", err
	}
	return store.Get(ctx, key).Result()
}

// GetDel reads and removes key in one round trip. Of two concurrent callers
// only one sees the value; the other gets redis.Nil.
func (c *Client) GetDel(ctx context.Context, key string) (string, error) {
	store, err := c.cmd()
	if err != nil {
		return "", err
	}
	return store.GetDel(ctx, key).Result()
}

// SetNX reports whether this call created key.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	store, err := c.cmd()
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, value, ttl).Result()
}

// Del removes keys. Missing keys are ignored.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	store, err := c.cmd()
	if err != nil {
		return err
	}
	return store.Del(ctx, keys...).Err()
}

// IncrWithTTL increments key and gives it ttl when it has no expiry yet. The
// expiry is re-checked on every hit, so a counter whose first EXPIRE was lost
// still ages out.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	store, err := c.cmd()
	if err != nil {
		return 0, err
	}
	count, err := store.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl > 0 {
		if err := store.ExpireNX(ctx, key, ttl).Err(); err != nil {
			return count, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return count, nil
}

// FixedWindowAllow counts one hit against scope and reports whether the window
// still has room for it.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if _, err := c.cmd(); err != nil {
		return false, 0, err
	}
	count, err := c.IncrWithTTL(ctx, c.RateLimitKey(scope), window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	store, err := c.cmd()
	if err != nil {
		return err
	}
	return store.Ping(ctx).Err()
}

// Close releases the connection pool. It is a no-op on a nil client.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
