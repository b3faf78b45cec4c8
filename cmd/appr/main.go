package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/appr/pkg/api"
	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/auth"
	"github.com/platinummonkey/appr/pkg/config"
	"github.com/platinummonkey/appr/pkg/observability"
	"github.com/platinummonkey/appr/pkg/ratelimit"
	"github.com/platinummonkey/appr/pkg/sso"
	"github.com/platinummonkey/appr/pkg/storage/postgres"
	"github.com/platinummonkey/appr/pkg/users"
)

var (
	envFile        = flag.String("env-file", ".env", "Optional .env file loaded before reading the environment")
	migrate        = flag.Bool("migrate", false, "Apply database migrations and exit")
	migrateOnStart = flag.Bool("migrate-on-start", false, "Apply database migrations before serving")
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
	).WithFields(map[string]interface{}{
		"service":     "appr-api",
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("appr exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := observability.SignalContext(context.Background())
	defer stop()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	if *migrate || *migrateOnStart {
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			return err
		}
		if *migrate {
			return nil
		}
	}

	cache, err := postgres.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer cache.Close()
	logger.Info("Connected to Redis")

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTPrivateKey, cfg.Auth.JWTPublicKey, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		return err
	}
	limiter := ratelimit.NewLoginLimiter(cache.Client(), ratelimit.Config{
		MaxFailures: cfg.Auth.LoginMaxFailures,
		Window:      cfg.Auth.LoginFailureWindow,
	})
	auditWriter := audit.NewWriter(metrics)
	authService := auth.NewService(db, tokens, limiter, auditWriter, metrics)

	deps := api.Deps{
		Config:    cfg,
		Logger:    logger,
		Health:    observability.NewHealthChecker(db, cache.Client(), cfg.App.Version, cfg.App.Environment),
		Auth:      authService,
		OIDC:      sso.NewOIDCService(cfg.SSO, cache, authService),
		SAML:      sso.NewSAMLService(cfg.SSO, authService),
		Users:     users.NewService(db, cache, auditWriter, metrics, cfg.Cache.ListTTL),
		Catalog:   api.NewCatalog(db, cache, auditWriter, metrics, cfg.Cache.ListTTL),
		AuditLogs: audit.NewStore(db),
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics
		if cfg.Server.MetricsPort == "" {
			deps.Gatherer = registry
		}
	}
	server := api.NewServer(deps)

	servers := []*http.Server{{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}}
	if cfg.Observability.MetricsEnabled && cfg.Server.MetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler(registry))
		servers = append(servers, &http.Server{
			Addr:    cfg.Server.Host + ":" + cfg.Server.MetricsPort,
			Handler: mux,
		})
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, servers...)
	if providers != nil {
		shutdown.RegisterShutdownFunc(providers.Shutdown)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.WithField("addr", srv.Addr).Info("Starting HTTP server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s failed: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")
		return shutdown.Shutdown()
	})

	return g.Wait()
}
