package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wcmitchell/insights-rbac/pkg/audit"
	"github.com/wcmitchell/insights-rbac/pkg/config"
	"github.com/wcmitchell/insights-rbac/pkg/httputil"
	"github.com/wcmitchell/insights-rbac/pkg/middleware"
	"github.com/wcmitchell/insights-rbac/pkg/notifications"
	"github.com/wcmitchell/insights-rbac/pkg/observability"
	"github.com/wcmitchell/insights-rbac/pkg/proxy"
	"github.com/wcmitchell/insights-rbac/pkg/rbac"
	"github.com/wcmitchell/insights-rbac/pkg/tenancy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rbac-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	// Tracing
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// Database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := rbac.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	store := rbac.NewStore(db)

	if err := tenancy.EnsureDefaults(ctx, store, logger); err != nil {
		return fmt.Errorf("failed to seed default groups: %w", err)
	}

	// Tenant cache (optional)
	var tenantCache *tenancy.Cache
	if cfg.Redis.Enabled {
		tenantCache, err = tenancy.NewCache(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer tenantCache.Close()
	}
	tenants := tenancy.NewService(store, tenantCache, logger)

	// Upstream gateways
	directory := proxy.New(cfg.Gateway.DirectoryURL, logger)

	var accounts rbac.ServiceAccountClient
	if cfg.Gateway.SSOURL != "" {
		itService, err := proxy.NewITService(ctx, cfg.Gateway.SSOURL, cfg.Gateway.IssuerURL,
			cfg.Gateway.ClientID, cfg.Gateway.ClientSecret, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize service account gateway: %w", err)
		}
		accounts = itService
	}

	// Audit
	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		return fmt.Errorf("failed to initialize audit log: %w", err)
	}
	auditStore := audit.NewDBStore(auditLogger)

	// Notifications
	var notifier notifications.Notifier
	if cfg.Notifications.URL != "" {
		notifier = notifications.NewHTTPNotifier(cfg.Notifications.URL, logger)
	} else {
		notifier = notifications.NewLogNotifier(logger)
	}

	resolver, err := rbac.NewResolver(store, directory)
	if err != nil {
		return fmt.Errorf("failed to initialize membership resolver: %w", err)
	}

	service := rbac.NewService(store, resolver, directory, accounts, auditLogger, notifier, logger)
	handlers := rbac.NewHandlers(service, auditStore, logger)

	// Metrics + health server
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, tenantCache.Client()))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
	go func() {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	// API router
	router := mux.NewRouter()
	router.Use(httputil.Recovery(logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestLogging(logger))
	router.Use(observability.HTTPMetricsMiddleware(metrics))
	router.Use(middleware.RequireIdentity)
	if cfg.Redis.Enabled {
		limiter := middleware.NewRateLimiter(tenantCache.Client(), middleware.DefaultRateLimitConfig())
		router.Use(middleware.RateLimit(limiter, logger))
	}
	router.Use(middleware.ResolveTenant(tenants, logger))

	api := router.PathPrefix("/api/rbac/v1").Subrouter()
	handlers.RegisterRoutes(api)

	var handler http.Handler = router
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(router, "rbac-server")
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Audit retention sweep
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Audit.CleanupSchedule, func() {
		pruned, err := auditStore.Cleanup(context.Background(), cfg.Audit.RetentionDays)
		if err != nil {
			logger.WithError(err).Error("Audit retention sweep failed")
			return
		}
		metrics.AuditRecordsPruned.Add(float64(pruned))
		logger.WithField("pruned", pruned).Info("Audit retention sweep complete")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule audit retention sweep: %w", err)
	}
	scheduler.Start()

	go func() {
		logger.Infof("API server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
		}
	}()

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		return healthServer.Shutdown(shutdownCtx)
	})
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		stopped := scheduler.Stop()
		select {
		case <-stopped.Done():
			return nil
		case <-shutdownCtx.Done():
			return shutdownCtx.Err()
		}
	})
	shutdown.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		return observability.ShutdownOTel(shutdownCtx, providers, logger)
	})

	return shutdown.WaitForShutdown()
}
