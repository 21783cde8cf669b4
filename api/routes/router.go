package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/campusaid-backend/api/controllers"
	"github.com/angelmondragon/campusaid-backend/api/middleware"
	"github.com/angelmondragon/campusaid-backend/internal/history"
	"github.com/angelmondragon/campusaid-backend/internal/identity"
	"github.com/angelmondragon/campusaid-backend/internal/notifications"
	"github.com/angelmondragon/campusaid-backend/internal/offers"
	"github.com/angelmondragon/campusaid-backend/internal/profiles"
	"github.com/angelmondragon/campusaid-backend/internal/requests"
	"github.com/angelmondragon/campusaid-backend/pkg/auth/session"
	"github.com/angelmondragon/campusaid-backend/pkg/config"
	"github.com/angelmondragon/campusaid-backend/pkg/db"
	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/campusaid-backend/pkg/redis"
)

// RedisStore is the slice of the Redis client the HTTP layer needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	Ping(ctx context.Context) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type profileFinder interface {
	FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Profile, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	sessions session.AccessSessionChecker,
	identityService identity.Service,
	profileService profiles.Service,
	profileFinder profileFinder,
	requestService requests.Service,
	offerService offers.Service,
	notificationsService notifications.Service,
	historyService history.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimiddleware.RealIP,
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	googlePolicy := middleware.NewAuthRateLimitPolicy(
		"google",
		cfg.AuthRateLimit.SignInWindow,
		cfg.AuthRateLimit.SignInIPLimit,
		0,
	)
	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.SignInWindow,
		cfg.AuthRateLimit.SignInIPLimit,
		cfg.AuthRateLimit.SignInEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	idempotency := middleware.Idempotency(redisStore, cfg.Eventing.HTTPIdempotencyTTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisStore))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(googlePolicy, redisStore, logg)).Post("/google", controllers.AuthGoogle(identityService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisStore, logg)).Post("/login", controllers.AuthLogin(identityService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisStore, logg), idempotency).Post("/register", controllers.AuthRegister(identityService, logg))
		r.Post("/refresh", controllers.AuthRefresh(identityService, cfg.JWT, logg))
		r.With(middleware.Auth(cfg.JWT, sessions, logg)).Post("/logout", controllers.AuthLogout(identityService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(idempotency)

		r.Get("/session", controllers.RestoreSession(identityService, logg))
		r.Route("/profile", func(r chi.Router) {
			r.Get("/", controllers.ProfileGet(profileService, logg))
			r.Post("/", controllers.ProfileCreate(profileService, logg))
			r.Put("/", controllers.ProfileUpdate(profileService, logg))
			r.Post("/avatar", controllers.ProfileAvatar(profileService, cfg.Media.MaxAvatarBytes(), logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireProfile(profileFinder, logg))

			r.Route("/requests", func(r chi.Router) {
				r.Get("/", controllers.RequestList(requestService, logg))
				r.Post("/", controllers.RequestCreate(requestService, logg))
				r.Get("/mine", controllers.RequestMine(requestService, logg))
				r.Route("/{requestId}", func(r chi.Router) {
					r.Get("/", controllers.RequestDetail(requestService, logg))
					r.Patch("/status", controllers.RequestSetStatus(requestService, logg))
					r.Route("/offers", func(r chi.Router) {
						r.Get("/", controllers.OfferList(offerService, logg))
						r.Post("/", controllers.OfferCreate(offerService, logg))
						r.Get("/mine", controllers.OfferMine(offerService, logg))
						r.Get("/{offerId}", controllers.OfferDetail(offerService, logg))
						r.Post("/{offerId}/accept", controllers.OfferAccept(offerService, logg))
						r.Post("/{offerId}/decline", controllers.OfferDecline(offerService, logg))
					})
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(notificationsService, logg))
				r.Get("/badge", controllers.NotificationBadge(notificationsService, logg))
			})

			r.Route("/history", func(r chi.Router) {
				r.Get("/received", controllers.HistoryReceived(historyService, logg))
				r.Get("/given", controllers.HistoryGiven(historyService, logg))
			})
		})
	})

	return r
}
