package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/atenda/kb-rag/internal/infra/postgres"
	"github.com/atenda/kb-rag/internal/platform/config"
	"github.com/atenda/kb-rag/internal/platform/database"
	"github.com/atenda/kb-rag/internal/platform/logger"
)

// MigrateAction applies the database schema. It connects directly instead of
// building the full AppContext: migration must work before Redis or the model
// gateway are reachable.
func MigrateAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return err
	}
	log := logger.New(logger.DefaultConfig())

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db.Pool); err != nil {
		return err
	}
	log.Info("database schema applied")
	return nil
}
