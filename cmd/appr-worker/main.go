package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/config"
	"github.com/platinummonkey/appr/pkg/observability"
	"github.com/platinummonkey/appr/pkg/storage/postgres"
)

var (
	envFile    = flag.String("env-file", ".env", "Optional .env file loaded before reading the environment")
	runOnce    = flag.Bool("run-once", false, "Run the export once and exit (for backfills)")
	exportDate = flag.String("date", "", "Day to export (YYYY-MM-DD). If empty, exports yesterday. Only used with --run-once")
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
	).WithField("service", "appr-worker")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("appr-worker exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	if !cfg.AuditExport.Enabled() {
		return fmt.Errorf("AUDIT_EXPORT_S3_BUCKET is not set")
	}

	ctx, stop := observability.SignalContext(context.Background())
	defer stop()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	objects, err := postgres.NewS3Client(ctx, postgres.S3OptionsFromConfig(cfg.AuditExport))
	if err != nil {
		return err
	}
	if err := objects.HealthCheck(ctx); err != nil {
		return err
	}
	exporter := audit.NewExporter(audit.NewStore(db), objects, cfg.AuditExport.Prefix)

	// Run once mode (for testing or backfilling)
	if *runOnce {
		day, err := exportDay(*exportDate, time.Now())
		if err != nil {
			return err
		}
		return runExport(ctx, exporter, logger, day)
	}

	c := cron.New(cron.WithLocation(time.UTC))
	_, err = c.AddFunc(cfg.AuditExport.Schedule, func() {
		defer observability.RecoverPanic(logger, "audit export job")
		day, _ := exportDay("", time.Now())
		if err := runExport(ctx, exporter, logger, day); err != nil {
			logger.WithError(err).Error("Audit export failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule audit export %q: %w", cfg.AuditExport.Schedule, err)
	}

	c.Start()
	logger.WithFields(map[string]interface{}{
		"schedule": cfg.AuditExport.Schedule,
		"bucket":   objects.Bucket(),
	}).Info("AppR worker started")

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	// Wait for a running export to finish
	<-c.Stop().Done()
	logger.Info("Worker stopped")
	return nil
}

func runExport(ctx context.Context, exporter *audit.Exporter, logger *observability.Logger, day time.Time) error {
	start := time.Now()
	logger = logger.WithField("day", day.Format("2006-01-02"))
	logger.Info("Starting audit export")

	result, err := exporter.ExportDay(observability.WithLogger(ctx, logger), day)
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"tenants":     result.Tenants,
		"records":     result.Records,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Audit export completed")
	return nil
}

// exportDay parses a YYYY-MM-DD flag value, defaulting to the UTC day before
// now
func exportDay(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return now.UTC().AddDate(0, 0, -1), nil
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %w", err)
	}
	return day, nil
}
