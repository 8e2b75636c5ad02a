package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/songbook/internal/repositories"
	"github.com/desertthunder/songbook/internal/shared"
)

// SetupConfig writes the embedded example config to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlain("Change auth.id_token_secret and auth.session_secret before serving.\n")
	return nil
}

// SetupDatabase opens the configured database and runs migrations.
//
// For SQLite the migration status is printed afterwards, and --rollback reverts
// the most recent migration instead.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	driver := r.config.Database.Driver
	r.logger.Info("initializing database", "driver", driver, "path", r.config.Database.Path)

	st, err := r.openStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	sq, ok := st.(*repositories.Store)
	if !ok {
		if cmd.Bool("rollback") {
			return fmt.Errorf("%w: --rollback requires the sqlite driver", shared.ErrInvalidFlag)
		}
		r.logger.Infof("setup complete for %s database", driver)
		return nil
	}

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(ctx, sq.DB()); err != nil {
			return err
		}
		r.logger.Info("rolled back latest migration")
	}

	states, err := shared.MigrationStatus(ctx, sq.DB())
	if err != nil {
		return err
	}
	r.writePlainHeader("Migrations")
	for _, s := range states {
		mark := "✗"
		if s.Applied {
			mark = "✓"
		}
		r.writePlain("%s %03d %s\n", mark, s.Version, s.Name)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}
