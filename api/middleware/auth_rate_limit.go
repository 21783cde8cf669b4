package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/campusaid-backend/api/responses"
	"github.com/angelmondragon/campusaid-backend/api/validators"
	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// rateDimension is one counter of a policy. key returns "" when the request
// carries nothing to count on, and the dimension is skipped.
type rateDimension struct {
	name      string
	limit     int64
	readsBody bool
	key       func(r *http.Request, body []byte) string
}

// AuthRateLimitPolicy throttles one auth surface (google, login, register) per
// client address and, for credential routes, per hashed email.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	dimensions []rateDimension
}

// NewAuthRateLimitPolicy builds a policy. A zero limit disables that dimension and
// a zero window disables the policy.
func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	policy := AuthRateLimitPolicy{name: name, window: window}
	if ipLimit > 0 {
		policy.dimensions = append(policy.dimensions, rateDimension{
			name:  "ip",
			limit: int64(ipLimit),
			key:   func(r *http.Request, _ []byte) string { return clientIP(r) },
		})
	}
	if emailLimit > 0 {
		policy.dimensions = append(policy.dimensions, rateDimension{
			name:      "email",
			limit:     int64(emailLimit),
			readsBody: true,
			key:       func(_ *http.Request, body []byte) string { return emailDigest(body) },
		})
	}
	return policy
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && len(p.dimensions) > 0
}

func (p AuthRateLimitPolicy) readsBody() bool {
	for _, d := range p.dimensions {
		if d.readsBody {
			return true
		}
	}
	return false
}

func (p AuthRateLimitPolicy) scope(d rateDimension, key string) string {
	return p.name + ":" + d.name + ":" + key
}

// AuthRateLimit counts each request against every dimension of policy and answers
// 429 RATE_LIMITED with Retry-After once one of them is over its limit.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var body []byte
			if policy.readsBody() && r.Body != nil {
				var err error
				body, err = io.ReadAll(io.LimitReader(r.Body, validators.MaxBodyBytes))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			for _, d := range policy.dimensions {
				key := d.key(r, body)
				if key == "" {
					continue
				}
				allowed, count, err := store.FixedWindowAllow(ctx, policy.scope(d, key), d.limit, policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"policy":         policy.name,
							"dimension":      d.name,
							"key":            key,
							"attempts":       count,
							"limit":          d.limit,
							"window_seconds": int(policy.window.Seconds()),
						}), "auth.rate_limited")
					}
					w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(policy.window)))
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(window time.Duration) int {
	if s := int(window.Seconds()); s > 0 {
		return s
	}
	return 1
}

// clientIP reads RemoteAddr, which chi's RealIP has already rewritten from the
// proxy headers.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// emailDigest hashes the normalized "email" field of a JSON body so raw addresses
// never reach Redis keys or logs.
func emailDigest(body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}
