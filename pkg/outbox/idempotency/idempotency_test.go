package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

type memoryStore struct {
	values   map[string]string
	ttls     map[string]time.Duration
	getErr   error
	setNXErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	v, ok := s.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.values[key] = value.(string)
	s.ttls[key] = ttl
	return nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.setNXErr != nil {
		return false, s.setNXErr
	}
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value.(string)
	s.ttls[key] = ttl
	return true, nil
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
		delete(s.ttls, key)
	}
	return nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "ca:idempotency:" + scope + ":" + id
}

func TestClaimLifecycle(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, 24*time.Hour, WithLease(30*time.Second))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()
	eventID := uuid.New()
	key := "ca:idempotency:evt:processed:analytics:" + eventID.String()

	state, err := manager.Claim(ctx, "analytics", eventID)
	if err != nil || state != Claimed {
		t.Fatalf("first claim: %v %v", state, err)
	}
	if store.values[key] != markerInFlight || store.ttls[key] != 30*time.Second {
		t.Fatalf("expected lease marker, got %q ttl %v", store.values[key], store.ttls[key])
	}

	if state, _ := manager.Claim(ctx, "analytics", eventID); state != InFlight {
		t.Fatalf("expected in_flight while leased, got %v", state)
	}

	if err := manager.Complete(ctx, "analytics", eventID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if store.values[key] != markerDone || store.ttls[key] != 24*time.Hour {
		t.Fatalf("expected done marker, got %q ttl %v", store.values[key], store.ttls[key])
	}
	if state, _ := manager.Claim(ctx, "analytics", eventID); state != Done {
		t.Fatalf("expected done after completion, got %v", state)
	}

	if state, _ := manager.Claim(ctx, "search", eventID); state != Claimed {
		t.Fatalf("other consumers claim independently, got %v", state)
	}
}

func TestReleaseAllowsReclaim(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()
	eventID := uuid.New()

	if state, _ := manager.Claim(ctx, "analytics", eventID); state != Claimed {
		t.Fatalf("expected claim, got %v", state)
	}
	if err := manager.Release(ctx, "analytics", eventID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if state, _ := manager.Claim(ctx, "analytics", eventID); state != Claimed {
		t.Fatalf("expected reclaim after release, got %v", state)
	}
}

func TestClaimVanishedLeaseIsInFlight(t *testing.T) {
	store := newMemoryStore()
	manager, _ := NewManager(store, time.Hour)
	eventID := uuid.New()
	store.values["ca:idempotency:evt:processed:analytics:"+eventID.String()] = markerInFlight
	store.getErr = goredis.Nil

	state, err := manager.Claim(context.Background(), "analytics", eventID)
	if err != nil || state != InFlight {
		t.Fatalf("expected in_flight without error, got %v %v", state, err)
	}
}

func TestClaimStoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.setNXErr = errors.New("redis down")
	manager, _ := NewManager(store, time.Hour)
	if _, err := manager.Claim(context.Background(), "analytics", uuid.New()); err == nil {
		t.Fatal("expected setnx error")
	}

	store = newMemoryStore()
	manager, _ = NewManager(store, time.Hour)
	eventID := uuid.New()
	store.values["ca:idempotency:evt:processed:analytics:"+eventID.String()] = markerDone
	store.getErr = errors.New("timeout")
	if _, err := manager.Claim(context.Background(), "analytics", eventID); err == nil {
		t.Fatal("expected get error")
	}
}

func TestClaimRejectsMissingInputs(t *testing.T) {
	manager, _ := NewManager(newMemoryStore(), time.Hour)
	if _, err := manager.Claim(context.Background(), "", uuid.New()); err == nil {
		t.Fatal("expected error for empty consumer")
	}
	if _, err := manager.Claim(context.Background(), "analytics", uuid.Nil); err == nil {
		t.Fatal("expected error for nil event id")
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewManager(newMemoryStore(), -time.Second); err == nil {
		t.Fatal("expected error for negative ttl")
	}
	m, _ := NewManager(newMemoryStore(), time.Hour, WithLease(0))
	if m.lease != DefaultLease {
		t.Fatalf("expected default lease, got %v", m.lease)
	}
}
