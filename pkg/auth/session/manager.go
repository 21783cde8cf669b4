// Package session keeps the refresh side of campusaid sign-ins in Redis. Each
// access token id (the JWT jti) owns one record holding its user and a hash of
// the refresh token that may rotate it.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/campusaid-backend/pkg/config"
	redisclient "github.com/angelmondragon/campusaid-backend/pkg/redis"
)

const refreshTokenBytes = 32

// ErrInvalidRefreshToken covers every refresh that must not succeed: unknown or
// expired session, wrong user, wrong token, or a token already rotated.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

var errAccessIDRequired = errors.New("access id is required")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is what the auth middleware needs to reject revoked
// access tokens.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type record struct {
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	IssuedAt  time.Time `json:"issued_at"`
}

type Manager struct {
	store sessionStore
	ttl   time.Duration
	now   func() time.Time
}

// NewManager requires a refresh TTL longer than the access TTL so a session
// always outlives the token that points at it.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return newManager(client, cfg.RefreshTokenTTL(), time.Duration(cfg.ExpirationMinutes)*time.Minute)
}

func newManager(store sessionStore, refreshTTL, accessTTL time.Duration) (*Manager, error) {
	switch {
	case refreshTTL <= 0:
		return nil, errors.New("refresh token ttl must be positive")
	case refreshTTL <= accessTTL:
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", refreshTTL, accessTTL)
	}
	return &Manager{store: store, ttl: refreshTTL, now: time.Now}, nil
}

// Generate opens a session for accessID and returns its refresh token. Only the
// token's hash is stored.
func (m *Manager) Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error) {
	if blank(accessID) {
		return "", errAccessIDRequired
	}
	if userID == uuid.Nil {
		return "", errors.New("user id is required")
	}
	token, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(record{UserID: userID, TokenHash: hashToken(token), IssuedAt: m.now().UTC()})
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), string(payload), m.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Rotate trades a valid refresh token for a new access id and refresh token.
// The old session is consumed atomically, so of two concurrent rotations with
// the same token exactly one succeeds. A mismatched token leaves the session
// in place.
func (m *Manager) Rotate(ctx context.Context, userID uuid.UUID, oldAccessID, provided string) (string, string, error) {
	if blank(oldAccessID) || blank(provided) {
		return "", "", ErrInvalidRefreshToken
	}
	key := m.store.AccessSessionKey(oldAccessID)

	stored, err := m.store.Get(ctx, key)
	if err != nil {
		return "", "", notFoundAsInvalid(err)
	}
	if !matches(stored, userID, provided) {
		return "", "", ErrInvalidRefreshToken
	}

	claimed, err := m.store.GetDel(ctx, key)
	if err != nil {
		return "", "", notFoundAsInvalid(err)
	}
	if claimed != stored {
		return "", "", ErrInvalidRefreshToken
	}

	accessID := NewAccessID()
	token, err := m.Generate(ctx, userID, accessID)
	if err != nil {
		return "", "", err
	}
	return accessID, token, nil
}

// Revoke ends the session behind accessID. Unknown ids are not an error.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if blank(accessID) {
		return errAccessIDRequired
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if blank(accessID) {
		return false, errAccessIDRequired
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case errors.Is(err, redislib.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// NewAccessID returns a fresh jti.
func NewAccessID() string {
	return uuid.NewString()
}

func matches(stored string, userID uuid.UUID, provided string) bool {
	var rec record
	if err := json.Unmarshal([]byte(stored), &rec); err != nil {
		return false
	}
	if rec.UserID != userID || rec.TokenHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(rec.TokenHash), []byte(hashToken(provided))) == 1
}

func newRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func notFoundAsInvalid(err error) error {
	if errors.Is(err, redislib.Nil) {
		return ErrInvalidRefreshToken
	}
	return err
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
