package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/platinummonkey/appr/pkg/config"
	"github.com/platinummonkey/appr/pkg/observability"
	"github.com/platinummonkey/appr/pkg/storage/postgres"
)

var (
	envFile  = flag.String("env-file", ".env", "Optional .env file loaded before reading the environment")
	seedFile = flag.String("file", "seed.yaml", "YAML file listing tenants and their admin users")
	migrate  = flag.Bool("migrate", false, "Apply database migrations before seeding")
)

func main() {
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(
		observability.ParseLogLevel(cfg.Observability.LogLevel),
		cfg.Observability.LogFormat,
		os.Stdout,
	).WithField("service", "appr-seed")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Seeding failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	data, err := os.ReadFile(*seedFile)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	file, err := ParseSeedFile(data)
	if err != nil {
		return err
	}

	ctx, stop := observability.SignalContext(context.Background())
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if *migrate {
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			return err
		}
	}

	summary, err := NewSeeder(db).Apply(ctx, file)
	if err != nil {
		return err
	}
	logger.WithFields(map[string]interface{}{
		"tenants":         summary.Tenants,
		"admins_created":  summary.AdminsCreated,
		"admins_existing": summary.AdminsExisting,
	}).Info("Seed complete")
	return nil
}
