package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/personacraft-backend/pkg/config"
	"github.com/angelmondragon/personacraft-backend/pkg/db"
	"github.com/angelmondragon/personacraft-backend/pkg/db/models"
	"github.com/angelmondragon/personacraft-backend/pkg/logger"
)

// MaybeRunDev applies the schema when the app runs in dev mode and the
// auto-migrate flag is on. Postgres gets the embedded goose migrations;
// sqlite, which cannot run them, is migrated from the models.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	if client.Driver() == config.DBDriverSQLite {
		ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "source": "models"})
		logg.Info(ctx, "migrations.autorun_start")
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto-migrating models: %w", err)
		}
		logg.Info(ctx, "migrations.autorun_complete")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "source": "embedded"})
	logg.Info(ctx, "migrations.autorun_start")

	if err := Run(ctx, sqlDB, "", "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "migrations.autorun_complete")
	return nil
}
