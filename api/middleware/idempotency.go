package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/campusaid-backend/api/responses"
	"github.com/angelmondragon/campusaid-backend/api/validators"
	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/campusaid-backend/pkg/redis"
)

// IdempotencyKeyHeader is the client-chosen key for a retryable write.
const IdempotencyKeyHeader = "Idempotency-Key"

// idempotentReplayedHeader marks a response served from the stored record.
const idempotentReplayedHeader = "Idempotent-Replayed"

const (
	defaultIdempotencyTTL = 24 * time.Hour
	// idempotencyLease caps how long an unfinished request holds its key.
	idempotencyLease = time.Minute
)

// idempotentRoutes are `METHOD path` patterns in path.Match syntax.
var idempotentRoutes = []string{
	"POST /api/v1/auth/register",
	"POST /api/v1/profile",
	"POST /api/v1/requests",
	"PATCH /api/v1/requests/*/status",
	"POST /api/v1/requests/*/offers",
	"POST /api/v1/requests/*/offers/*/accept",
	"POST /api/v1/requests/*/offers/*/decline",
}

// idempotencyRecord is stored under the key. Status 0 marks a request that is
// still running.
type idempotencyRecord struct {
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// write routes, scoped per user, method and path. The key is reserved before the
// handler runs, so a concurrent duplicate gets IDEMPOTENCY_CONFLICT instead of a
// second write. Responses of 500 and above release the key. Requests without
// the header pass through. A non-positive ttl falls back to 24h.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	lease := min(ttl, idempotencyLease)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" || store == nil || !idempotentRoute(r.Method, requestPath(r)) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			body, err := io.ReadAll(io.LimitReader(r.Body, validators.MaxBodyBytes+1))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(idempotencyScope(r), clientKey)
			fingerprint := hashBody(body)

			pending, _ := json.Marshal(idempotencyRecord{RequestHash: fingerprint})
			claimed, err := store.SetNX(ctx, key, string(pending), lease)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !claimed {
				replayStored(ctx, w, store, key, fingerprint, logg)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := defaultStatus(rec.status)
			if !replayable(status) {
				if err := store.Del(ctx, key); err != nil {
					logError(ctx, logg, "release idempotency key", err)
				}
				return
			}
			done, err := json.Marshal(idempotencyRecord{
				RequestHash: fingerprint,
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err != nil {
				logError(ctx, logg, "marshal idempotency record", err)
				return
			}
			if err := store.Set(ctx, key, string(done), ttl); err != nil {
				logError(ctx, logg, "persist idempotency record", err)
			}
		})
	}
}

// replayStored answers a request whose key is already taken.
func replayStored(ctx context.Context, w http.ResponseWriter, store pkgredis.IdempotencyStore, key, fingerprint string, logg *logger.Logger) {
	stored, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		// released between SetNX and Get
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
		return
	case err != nil:
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case record.RequestHash != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case record.Status == 0:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(idempotentReplayedHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

func idempotencyScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func defaultStatus(value int) int {
	if value == 0 {
		return http.StatusOK
	}
	return value
}

// replayable reports whether a response is recorded under its key. A retry after
// a server error runs the handler again.
func replayable(status int) bool {
	return status < http.StatusInternalServerError
}

func requestPath(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}
	if p := strings.TrimSuffix(r.URL.Path, "/"); p != "" {
		return p
	}
	return r.URL.Path
}

func idempotentRoute(method, p string) bool {
	if p == "" {
		return false
	}
	for _, route := range idempotentRoutes {
		routeMethod, pattern, _ := strings.Cut(route, " ")
		if routeMethod != method {
			continue
		}
		if ok, _ := path.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
