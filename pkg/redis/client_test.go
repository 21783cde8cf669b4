package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/campusaid-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := "ca:rate_limit:signin:ip:1.2.3.4"

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "signin:ip:1.2.3.4", 2, time.Minute)
		if err != nil {
			t.Fatalf("hit %d: unexpected error: %v", i+1, err)
		}
		if allowed != want || count != int64(i+1) {
			t.Fatalf("hit %d: expected allowed=%v count=%d, got allowed=%v count=%d", i+1, want, i+1, allowed, count)
		}
	}
	if mock.ttls[key] != time.Minute {
		t.Fatalf("expected window ttl on counter, got %v", mock.ttls[key])
	}
	if mock.ttlWrites != 1 {
		t.Fatalf("window must not be extended by later hits, got %d writes", mock.ttlWrites)
	}
}

func TestIncrWithTTLRepairsMissingExpiry(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	mock.incr["ca:rate_limit:orphan"] = 4
	client := &Client{store: mock}

	count, err := client.IncrWithTTL(ctx, "ca:rate_limit:orphan", 30*time.Second)
	if err != nil || count != 5 {
		t.Fatalf("unexpected result count=%d err=%v", count, err)
	}
	if mock.ttls["ca:rate_limit:orphan"] != 30*time.Second {
		t.Fatalf("expected ttl to be restored, got %v", mock.ttls["ca:rate_limit:orphan"])
	}
}

func TestIncrWithTTLSurfacesExpireError(t *testing.T) {
	mock := newMockCmdable()
	mock.expireErr = errors.New("READONLY")
	client := &Client{store: mock}

	count, err := client.IncrWithTTL(context.Background(), "k", time.Second)
	if err == nil || count != 1 {
		t.Fatalf("expected count with expire error, got count=%d err=%v", count, err)
	}
}

func TestSetNXOnlyOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	first, err := client.SetNX(ctx, client.LockKey("outbox-retention"), "1", time.Minute)
	if err != nil || !first {
		t.Fatalf("expected first SetNX to win, got %v err=%v", first, err)
	}
	second, err := client.SetNX(ctx, client.LockKey("outbox-retention"), "1", time.Minute)
	if err != nil || second {
		t.Fatalf("expected second SetNX to lose, got %v err=%v", second, err)
	}
}

func TestGetDelConsumesOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.AccessSessionKey("abc")
	if err := client.Set(ctx, key, "record", time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := client.GetDel(ctx, key)
	if err != nil || got != "record" {
		t.Fatalf("expected record, got %q err=%v", got, err)
	}
	if _, err := client.GetDel(ctx, key); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil on second read, got %v", err)
	}
}

func TestKeyspace(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"idempotency", (&Client{}).IdempotencyKey("scope", "id"), "ca:idempotency:scope:id"},
		{"rate limit", (&Client{}).RateLimitKey("scope"), "ca:rate_limit:scope"},
		{"access session", (&Client{}).AccessSessionKey("abc"), "ca:session:access:abc"},
		{"padded lock", (&Client{}).LockKey(" job "), "ca:lock:job"},
		{"blank part", (&Client{}).IdempotencyKey("", "id"), "ca:idempotency:id"},
		{"custom keyspace", Keyspace("ca-test").LockKey("cron"), "ca-test:lock:cron"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("%s: expected %q got %q", tt.name, tt.want, tt.got)
		}
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	var client *Client
	if err := client.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if _, err := client.Get(context.Background(), "k"); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("nil client close should be a no-op, got %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/3", DB: 5, PoolSize: 7, DialTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 3 || opts.PoolSize != 7 || opts.DialTimeout != 2*time.Second {
		t.Fatalf("url settings should win and gaps be filled, got %+v", opts)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", Password: "pw", DB: 2, MinIdleConns: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.Password != "pw" || opts.DB != 2 || opts.MinIdleConns != 3 {
		t.Fatalf("unexpected address options %+v", opts)
	}

	if _, err := optionsFromConfig(config.RedisConfig{URL: " "}); !errors.Is(err, errNoEndpoint) {
		t.Fatalf("expected errNoEndpoint, got %v", err)
	}
}

type mockCmdable struct {
	data      map[string]string
	incr      map[string]int64
	ttls      map[string]time.Duration
	ttlWrites int
	expireErr error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
		ttls: make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) GetDel(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	delete(m.data, key)
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) ExpireNX(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if m.expireErr != nil {
		return redis.NewBoolResult(false, m.expireErr)
	}
	if _, set := m.ttls[key]; set {
		return redis.NewBoolResult(false, nil)
	}
	m.ttls[key] = expiration
	m.ttlWrites++
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
