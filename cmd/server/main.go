// Package main is the entrypoint for the TenantBridge API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenantbridge/internal/api"
	"tenantbridge/internal/api/handler"
	mw "tenantbridge/internal/api/middleware"
	"tenantbridge/internal/api/response"
	"tenantbridge/internal/cache"
	"tenantbridge/internal/config"
	"tenantbridge/internal/frontegg"
	"tenantbridge/internal/hierarchy"
	"tenantbridge/internal/provision"
	"tenantbridge/internal/session"
	"tenantbridge/internal/store"
	"tenantbridge/internal/token"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "vendor_base_url", cfg.Vendor.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Vendor client + vendor token. A failed initial acquisition is not
	// fatal: dependent operations defer until the token can be fetched.
	vendor := frontegg.NewHTTPClient(
		cfg.Vendor.BaseURL, cfg.Vendor.ApplicationID, cfg.Vendor.VendorHost, cfg.Vendor.Timeout)

	tokens := token.NewManager(vendor, cfg.Vendor.ClientID, cfg.Vendor.ClientSecret)
	if err := tokens.Acquire(ctx); err != nil {
		slog.Error("initial vendor token acquisition failed, will retry lazily", "error", err)
	} else {
		slog.Info("vendor token acquired")
	}

	// 6. Stores and services
	pgStore := store.NewPostgresStore(pool)
	sessions := session.NewManager(vendor)
	aggregator := hierarchy.NewService(vendor, tokens, redisCache, cfg.Vendor.HierarchyTTL)
	provisioner := provision.NewService(vendor, tokens, sessions, pgStore)

	// 7. Build router with dependencies
	auth, err := mw.NewAuth(pgStore, cfg.Session.JWTPublicKey)
	if err != nil {
		return fmt.Errorf("build auth middleware: %w", err)
	}
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache, tokens),

		SessionHandler: handler.NewSessionHandler(sessions),
		LinksHandler:   handler.NewLinksHandler(cfg.Vendor.BaseURL, cfg.Server.AppURL),

		ListTenantsHandler:  handler.NewListTenantsHandler(sessions, aggregator),
		SwitchTenantHandler: handler.NewSwitchTenantHandler(sessions),
		CreateTenantHandler: handler.NewCreateTenantHandler(sessions, provisioner),
		GetProvisionHandler: handler.NewGetProvisionHandler(pgStore),

		ListProvisionsHandler: handler.NewListProvisionsHandler(pgStore),
		CreateKeyHandler:      handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:       handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler:      handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// tokenSource is the readiness probe's view of the vendor token.
type tokenSource interface {
	Get() (string, bool)
}

// healthHandler checks database, cache, and vendor-token readiness.
func healthHandler(s store.Store, c cache.Cache, tokens tokenSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database":     "ok",
			"cache":        "ok",
			"vendor_token": "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}
		if _, ok := tokens.Get(); !ok {
			checks["vendor_token"] = "not_ready"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
