// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health probes and graceful shutdown.
//
// # Structured Logging
//
// The Logger wraps logrus and is selected by LOG_LEVEL and LOG_FORMAT:
//
//	logger := observability.NewLogger(observability.InfoLevel, observability.FormatJSON, os.Stdout)
//	logger.WithField("tenant_id", tid).Info("entity created")
//
// Request-scoped loggers carry request_id, user_id and tenant_id:
//
//	observability.FromContext(r.Context()).WithError(err).Warn("cache read failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.CacheHit("service")
//
// All recorder methods accept a nil *Metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version, env)
//	router.HandleFunc("/health", checker.Liveness)
//	router.HandleFunc("/ready", checker.Readiness)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer providers.Shutdown(ctx)
package observability
