package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"github.com/ministryhub/checkin-rollup/pkg/config"
	"github.com/ministryhub/checkin-rollup/pkg/migrations/rollupdb"
	"github.com/ministryhub/checkin-rollup/pkg/pgutil"
	mghelper "github.com/ministryhub/checkin-rollup/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	if err := run(*cfgPath, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		if errors.Is(err, mghelper.ErrNoCommand) {
			mghelper.Usage()
		}
		os.Exit(1)
	}
}

func run(cfgPath string, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Storage.Driver != config.StoragePostgres {
		return fmt.Errorf("migrations apply to the postgres storage driver only, configured driver is %q", cfg.Storage.Driver)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := pgutil.ConnectDB(&cfg.Storage.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("Running check-in rollup migrations", zap.String("database", cfg.Storage.Postgres.Database))
	return mghelper.RunMigrations(context.Background(), migrate.NewMigrator(db, rollupdb.Migrations), logger, args...)
}
