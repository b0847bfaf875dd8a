// Package migrations provides the schema helpers used by the rollup database
// migrations and the command dispatcher behind cmd/rollup/migrate.
package migrations

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// ErrNoCommand is returned by RunMigrations when args is empty.
var ErrNoCommand = errors.New("no command provided")

const usageText = `Usage:
  migrate [-config path] <command>

Commands:
  init     create the bun_migrations bookkeeping tables
  up       apply every pending migration
  down     roll back the last applied group
  status   list applied and pending migrations
`

// Usage prints the command help and exits with status 2.
func Usage() {
	fmt.Fprint(os.Stderr, usageText)
	flag.PrintDefaults()
	os.Exit(2)
}

// CreateSchema creates the table of every model that does not exist yet.
func CreateSchema(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}
	return nil
}

// DropTables drops the table of every model, cascading to dependent objects.
func DropTables(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewDropTable().Model(model).IfExists().Cascade().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table for %T: %w", model, err)
		}
	}
	return nil
}

// CreateModelIndexes creates idx_<table>_<column> for each column.
func CreateModelIndexes(ctx context.Context, db bun.IDB, model any, columns ...string) error {
	for _, column := range columns {
		if err := CreateModelCompositeIndex(ctx, db, model, false, column); err != nil {
			return err
		}
	}
	return nil
}

// CreateModelCompositeIndex creates idx_<table>_<col1>_<col2>... over columns in order.
func CreateModelCompositeIndex(ctx context.Context, db bun.IDB, model any, unique bool, columns ...string) error {
	if len(columns) == 0 {
		return errors.New("at least one column is required")
	}
	if model == nil {
		return errors.New("model cannot be nil")
	}

	q := db.NewCreateIndex().Model(model)
	table := strings.NewReplacer(`"`, "", ".", "_").Replace(q.GetTableName())
	if table == "" {
		return fmt.Errorf("failed to resolve table name for model %T", model)
	}
	name := "idx_" + table + "_" + strings.Join(columns, "_")

	q = q.Index(name).Column(columns...).IfNotExists()
	if unique {
		q = q.Unique()
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create index %s: %w", name, err)
	}
	return nil
}

type command func(ctx context.Context, m *migrate.Migrator, logger *zap.Logger) error

var commands = map[string]command{
	"init":   initCmd,
	"up":     upCmd,
	"down":   downCmd,
	"status": statusCmd,
}

// RunMigrations dispatches args[0] to the matching migrator command.
func RunMigrations(ctx context.Context, migrator *migrate.Migrator, logger *zap.Logger, args ...string) error {
	if len(args) == 0 {
		return ErrNoCommand
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return cmd(ctx, migrator, logger)
}

func initCmd(ctx context.Context, m *migrate.Migrator, logger *zap.Logger) error {
	if err := m.Init(ctx); err != nil {
		return fmt.Errorf("failed to create migration tables: %w", err)
	}
	logger.Info("Migration tables created")
	return nil
}

func upCmd(ctx context.Context, m *migrate.Migrator, logger *zap.Logger) error {
	return withLock(ctx, m, logger, func() error {
		group, err := m.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
		if group.IsZero() {
			logger.Info("Database is up to date")
			return nil
		}
		logger.Info("Migrated", zap.Stringer("group", group))
		return nil
	})
}

func downCmd(ctx context.Context, m *migrate.Migrator, logger *zap.Logger) error {
	return withLock(ctx, m, logger, func() error {
		group, err := m.Rollback(ctx)
		if err != nil {
			return fmt.Errorf("failed to roll back: %w", err)
		}
		if group.IsZero() {
			logger.Info("Nothing to roll back")
			return nil
		}
		logger.Info("Rolled back", zap.Stringer("group", group))
		return nil
	})
}

func statusCmd(ctx context.Context, m *migrate.Migrator, logger *zap.Logger) error {
	ms, err := m.MigrationsWithStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	logger.Info("Migration status",
		zap.Stringer("applied", ms.Applied()),
		zap.Stringer("unapplied", ms.Unapplied()),
		zap.Stringer("last_group", ms.LastGroup()),
	)
	return nil
}

func withLock(ctx context.Context, m *migrate.Migrator, logger *zap.Logger, fn func() error) error {
	if err := m.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if err := m.Unlock(ctx); err != nil {
			logger.Warn("Failed to release migration lock", zap.Error(err))
		}
	}()
	return fn()
}
