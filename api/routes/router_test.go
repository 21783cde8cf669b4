package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/internal/history"
	"github.com/angelmondragon/campusaid-backend/internal/identity"
	"github.com/angelmondragon/campusaid-backend/internal/notifications"
	"github.com/angelmondragon/campusaid-backend/internal/offers"
	"github.com/angelmondragon/campusaid-backend/internal/profiles"
	"github.com/angelmondragon/campusaid-backend/internal/requests"
	pkgAuth "github.com/angelmondragon/campusaid-backend/pkg/auth"
	"github.com/angelmondragon/campusaid-backend/pkg/auth/session"
	"github.com/angelmondragon/campusaid-backend/pkg/config"
	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryRedis struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryRedis) Ping(context.Context) error {
	return nil
}

func (m *memoryRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

type stubSessions struct {
	live bool
}

func (s stubSessions) HasSession(ctx context.Context, accessID string) (bool, error) {
	return s.live, nil
}

type stubProfiles struct {
	owners map[uuid.UUID]bool
}

func (s stubProfiles) FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Profile, error) {
	if s.owners[ownerID] {
		return &models.Profile{OwnerID: ownerID}, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubRequests struct {
	requests.Service
}

func (stubRequests) ListOpen(ctx context.Context, viewerID uuid.UUID, input requests.ListOpenInput) (*requests.ListResult, error) {
	return &requests.ListResult{Items: []requests.RequestDTO{}}, nil
}

type stubNotifications struct{}

func (stubNotifications) PendingForUser(ctx context.Context, userID uuid.UUID) ([]notifications.Item, error) {
	return []notifications.Item{}, nil
}

func (stubNotifications) Badge(ctx context.Context, userID uuid.UUID) (*notifications.Badge, error) {
	return &notifications.Badge{}, nil
}

type stubHistory struct{}

func (stubHistory) ReceivedByUser(ctx context.Context, userID uuid.UUID) ([]history.Entry, error) {
	return []history.Entry{}, nil
}

func (stubHistory) GivenByUser(ctx context.Context, userID uuid.UUID) ([]history.Entry, error) {
	return []history.Entry{}, nil
}

type stubIdentity struct {
	identity.Service
}

type stubProfileService struct {
	profiles.Service
}

type stubOffers struct {
	offers.Service
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "campusaid", ExpirationMinutes: 60},
		AuthRateLimit: config.AuthRateLimitConfig{
			SignInWindow:  time.Minute,
			SignInIPLimit: 1,
		},
	}
}

func newTestRouter(cfg *config.Config, live bool, onboarded ...uuid.UUID) http.Handler {
	owners := map[uuid.UUID]bool{}
	for _, id := range onboarded {
		owners[id] = true
	}
	return NewRouter(
		cfg,
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		stubPinger{},
		newMemoryRedis(),
		stubSessions{live: live},
		stubIdentity{},
		stubProfileService{},
		stubProfiles{owners: owners},
		stubRequests{},
		stubOffers{},
		stubNotifications{},
		stubHistory{},
	)
}

func bearer(t *testing.T, cfg config.JWTConfig, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:   userID,
		Email:    "student@campus.edu",
		Provider: enums.AuthProviderGoogle,
		JTI:      session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestPublicRoutes(t *testing.T) {
	router := newTestRouter(testConfig(), true)
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(testConfig(), true)
	for _, path := range []string{"/api/v1/session", "/api/v1/profile", "/api/v1/requests", "/api/v1/notifications/badge"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, resp.Code)
		}
	}
}

func TestRevokedSessionIsRejected(t *testing.T) {
	cfg := testConfig()
	userID := uuid.New()
	router := newTestRouter(cfg, false, userID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	req.Header.Set("Authorization", bearer(t, cfg.JWT, userID))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestMarketplaceRoutesRequireOnboarding(t *testing.T) {
	cfg := testConfig()
	userID := uuid.New()
	router := newTestRouter(cfg, true)

	for _, path := range []string{"/api/v1/requests", "/api/v1/notifications", "/api/v1/history/given"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", bearer(t, cfg.JWT, userID))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusPreconditionRequired {
			t.Fatalf("%s: expected 428 got %d", path, resp.Code)
		}
	}
}

func TestOnboardedUserReachesMarketplace(t *testing.T) {
	cfg := testConfig()
	userID := uuid.New()
	router := newTestRouter(cfg, true, userID)

	for _, path := range []string{"/api/v1/requests", "/api/v1/notifications", "/api/v1/notifications/badge", "/api/v1/history/received", "/api/v1/history/given"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", bearer(t, cfg.JWT, userID))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d: %s", path, resp.Code, resp.Body.String())
		}
	}
}

func TestGoogleSignInIsRateLimitedPerIP(t *testing.T) {
	router := newTestRouter(testConfig(), true)

	// the first call reaches the handler and fails validation; the second is throttled
	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google", nil)
		req.RemoteAddr = "10.1.1.1:4000"
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] == http.StatusTooManyRequests {
		t.Fatalf("first call should not be throttled")
	}
	if codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second call got %d", codes[1])
	}
}
