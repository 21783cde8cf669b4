package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/campusaid-backend/api/routes"
	"github.com/angelmondragon/campusaid-backend/internal/history"
	"github.com/angelmondragon/campusaid-backend/internal/identity"
	"github.com/angelmondragon/campusaid-backend/internal/notifications"
	"github.com/angelmondragon/campusaid-backend/internal/offers"
	"github.com/angelmondragon/campusaid-backend/internal/profiles"
	"github.com/angelmondragon/campusaid-backend/internal/requests"
	"github.com/angelmondragon/campusaid-backend/internal/users"
	"github.com/angelmondragon/campusaid-backend/pkg/auth/oidc"
	"github.com/angelmondragon/campusaid-backend/pkg/auth/session"
	"github.com/angelmondragon/campusaid-backend/pkg/config"
	"github.com/angelmondragon/campusaid-backend/pkg/db"
	"github.com/angelmondragon/campusaid-backend/pkg/instance"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
	"github.com/angelmondragon/campusaid-backend/pkg/migrate"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox"
	"github.com/angelmondragon/campusaid-backend/pkg/redis"
	"github.com/angelmondragon/campusaid-backend/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = db.DriverSQLite
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap gcs", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing gcs", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	var verifier oidc.TokenVerifier
	if cfg.Identity.GoogleClientID != "" {
		googleVerifier, err := oidc.NewGoogleVerifier(ctx, cfg.Identity)
		if err != nil {
			logg.Error(ctx, "failed to create google verifier", err)
			os.Exit(1)
		}
		verifier = googleVerifier
	} else {
		logg.Warn(ctx, "google client id not configured, google sign-in disabled")
	}

	conn := dbClient.DB()
	userRepo := users.NewRepository(conn)
	profileRepo := profiles.NewRepository(conn)
	requestRepo := requests.NewRepository(conn)
	offerRepo := offers.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	identityService, err := identity.NewService(identity.ServiceParams{
		Users:    userRepo,
		Profiles: profileRepo,
		Sessions: sessionManager,
		Verifier: verifier,
		JWT:      cfg.JWT,
		Password: cfg.Password,
		Identity: cfg.Identity,
		Logger:   logg,
	})
	requireService(ctx, logg, "identity", err)

	profileService, err := profiles.NewService(profiles.ServiceParams{
		Repo:           profileRepo,
		Users:          userRepo,
		Tx:             dbClient,
		Outbox:         emitter,
		Blobs:          gcsClient,
		MaxAvatarBytes: cfg.Media.MaxAvatarBytes(),
	})
	requireService(ctx, logg, "profiles", err)

	requestService, err := requests.NewService(requests.ServiceParams{
		Repo:     requestRepo,
		Profiles: profileRepo,
		Accepted: offerRepo,
		Tx:       dbClient,
		Outbox:   emitter,
	})
	requireService(ctx, logg, "requests", err)

	offerService, err := offers.NewService(offers.ServiceParams{
		Repo:     offerRepo,
		Requests: requestRepo,
		Profiles: profileRepo,
		Tx:       dbClient,
		Outbox:   emitter,
	})
	requireService(ctx, logg, "offers", err)

	notificationsService, err := notifications.NewService(notifications.NewRepository(conn))
	requireService(ctx, logg, "notifications", err)

	historyService, err := history.NewService(history.NewRepository(conn))
	requireService(ctx, logg, "history", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			identityService,
			profileService,
			profileRepo,
			requestService,
			offerService,
			notificationsService,
			historyService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "graceful shutdown failed", err)
		}
	}
}

func requireService(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "service", name), "failed to create service", err)
	os.Exit(1)
}
