package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/api/responses"
	"github.com/angelmondragon/campusaid-backend/pkg/db"
	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
)

type profileFinder interface {
	FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Profile, error)
}

// RequireProfile blocks marketplace routes until the caller has completed onboarding.
// It must run after Auth.
func RequireProfile(profiles profileFinder, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserUUIDFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
				return
			}
			if profiles == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile lookup unavailable"))
				return
			}
			if _, err := profiles.FindByOwner(r.Context(), userID); err != nil {
				if db.IsNotFound(err) {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeOnboardingRequired, "profile required"))
					return
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
