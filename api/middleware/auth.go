package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/campusaid-backend/api/responses"
	pkgAuth "github.com/angelmondragon/campusaid-backend/pkg/auth"
	"github.com/angelmondragon/campusaid-backend/pkg/auth/session"
	"github.com/angelmondragon/campusaid-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
)

const bearerChallenge = `Bearer realm="campusaid"`

// Auth admits requests carrying a valid access token whose session is still
// live, and puts the caller's user and access ids on the context. A nil
// sessions checker skips the revocation lookup.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(r.Context(), cfg, sessions, BearerToken(r))
			if err != nil {
				if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
					w.Header().Set("WWW-Authenticate", bearerChallenge)
				}
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			userID := claims.UserID.String()
			ctx := WithAccessID(WithUserID(r.Context(), userID), claims.ID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, cfg config.JWTConfig, sessions session.AccessSessionChecker, token string) (*pkgAuth.AccessTokenClaims, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "token expired")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	case claims.ID == "":
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if sessions == nil {
		return claims, nil
	}
	live, err := sessions.HasSession(ctx, claims.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	}
	if !live {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
	}
	return claims, nil
}

// BearerToken returns the Authorization credential. The "Bearer" scheme is
// matched case-insensitively and may be omitted.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, rest, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	return raw
}
