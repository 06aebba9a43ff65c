package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

// MaybeRunDev brings a dev database up to date on boot when the auto-migrate
// flag is on. Postgres gets the goose set; a sqlite file is synced from the
// gorm models because the SQL is postgres-only.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if strings.EqualFold(cfg.DB.Driver, "sqlite") {
		if err := client.DB().AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("sync sqlite schema: %w", err)
		}
		logg.Info(ctx, "migrate.dev_models_synced")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	runner, err := NewRunner(sqlDB, DefaultDir, logg)
	if err != nil {
		return err
	}
	return runner.Up(ctx)
}
