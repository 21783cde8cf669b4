package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/campusaid-backend/pkg/config"
	"github.com/angelmondragon/campusaid-backend/pkg/db"
	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date in dev when CAMPUSAID_AUTO_MIGRATE
// is set. SQLite dev databases are built from the models since the SQL files
// target Postgres.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if cfg.DB.Driver == db.DriverSQLite {
		if err := client.DB().WithContext(ctx).AutoMigrate(
			&models.User{},
			&models.Profile{},
			&models.HelpRequest{},
			&models.Offer{},
			&models.OutboxEvent{},
			&models.OutboxDLQ{},
		); err != nil {
			return fmt.Errorf("sqlite automigrate: %w", err)
		}
		logg.Info(ctx, "migrate.dev_sqlite_complete")
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	migrator, err := New(sqlDB)
	if err != nil {
		return err
	}
	applied, err := migrator.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", len(applied)), "migrate.dev_complete")
	return nil
}
