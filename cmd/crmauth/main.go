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

	crmhttp "github.com/lachgar03/crm-project/internal/adapter/http"
	crmnats "github.com/lachgar03/crm-project/internal/adapter/nats"
	"github.com/lachgar03/crm-project/internal/adapter/natskv"
	crmotel "github.com/lachgar03/crm-project/internal/adapter/otel"
	"github.com/lachgar03/crm-project/internal/adapter/postgres"
	"github.com/lachgar03/crm-project/internal/adapter/ristretto"
	"github.com/lachgar03/crm-project/internal/adapter/tiered"
	"github.com/lachgar03/crm-project/internal/config"
	"github.com/lachgar03/crm-project/internal/logger"
	"github.com/lachgar03/crm-project/internal/middleware"
	"github.com/lachgar03/crm-project/internal/propagate"
	"github.com/lachgar03/crm-project/internal/secrets"
	"github.com/lachgar03/crm-project/internal/service"
)

const serviceName = "crm-auth"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := applySecrets(cfg); err != nil {
		return fmt.Errorf("secrets: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx := context.Background()

	otelShutdown, err := crmotel.Setup(ctx, cfg.Otel, serviceName)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := crmnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// Tiered cache: in-process ristretto in front of the shared
	// JetStream KV bucket.
	l1, err := ristretto.New(cfg.Cache.L1MaxBytes)
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	defer l1.Close()

	kv, err := queue.CacheBucket(ctx, cfg.NATS.CacheBucket, cfg.Cache.PermissionTTL)
	if err != nil {
		return fmt.Errorf("cache bucket: %w", err)
	}
	authCache := tiered.New(l1, natskv.New(kv), cfg.Cache.TenantTTL)

	// --- Services ---

	store := postgres.NewStore(pool)

	tokens, err := service.NewTokenService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}
	authSvc := service.NewAuthService(store, tokens, cfg.Auth.BcryptCost)
	permSvc := service.NewPermissionService(store, authCache, cfg.Cache.PermissionTTL)

	if cfg.Otel.Enabled {
		metrics, err := crmotel.NewMetrics()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		authSvc.SetMetrics(metrics)
		permSvc.SetMetrics(metrics)
	}

	evictor := service.NewEvictor(store, authCache, permSvc, queue)
	stopEvictor, err := evictor.Start(ctx)
	if err != nil {
		return fmt.Errorf("eviction subscriber: %w", err)
	}
	defer stopEvictor()

	tenantSvc := service.NewTenantService(store, authCache, cfg.Cache.TenantTTL, evictor, queue)
	userSvc := service.NewUserService(store, authSvc, evictor)
	roleSvc := service.NewRoleService(store, evictor)
	registrationSvc := service.NewRegistrationService(store, authSvc, queue)

	if err := registrationSvc.EnsureMasterTenant(ctx,
		cfg.Bootstrap.AdminEmail,
		cfg.Bootstrap.AdminPassword,
		cfg.Bootstrap.AdminFirstName,
		cfg.Bootstrap.AdminLastName,
	); err != nil {
		slog.Warn("master tenant bootstrap skipped", "error", err)
	}

	// Background task runner for work that outlives its request.
	runner := propagate.NewRunner(cfg.Outbound.WorkerLimit)

	purgeCtx, cancelPurge := context.WithCancel(ctx)
	defer cancelPurge()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-purgeCtx.Done():
				return
			case <-ticker.C:
				_ = runner.Submit(purgeCtx, "purge-refresh-tokens", func(ctx context.Context) error {
					n, err := store.PurgeExpiredRefreshTokens(ctx)
					if err != nil {
						return err
					}
					if n > 0 {
						slog.Info("purged expired refresh tokens", "count", n)
					}
					return nil
				})
			}
		}
	}()

	// --- HTTP ---

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	handlers := crmhttp.NewHandlers(
		authSvc, registrationSvc, tenantSvc, userSvc, roleSvc, permSvc, store, queue)
	router := crmhttp.NewRouter(
		handlers, authSvc, tokens, tenantSvc, permSvc, limiter, cfg.Server.CORSOrigin)

	var handler http.Handler = router
	if cfg.Otel.Enabled {
		handler = crmotel.HTTPMiddleware(serviceName)(handler)
	}

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		slog.Warn("background tasks did not finish in time", "error", err)
	}
	if err := queue.Drain(); err != nil {
		slog.Warn("nats drain failed", "error", err)
	}
	return nil
}

// applySecrets layers file-mounted and environment secrets over the
// loaded config. Files under the secrets directory win over env vars.
func applySecrets(cfg *config.Config) error {
	dir := os.Getenv("CRMAUTH_SECRETS_DIR")
	if dir == "" {
		dir = "/run/secrets"
	}

	vault, err := secrets.NewVault(secrets.Chain(
		secrets.EnvLoader("CRMAUTH_JWT_SECRET", "DATABASE_URL", "CRMAUTH_BOOTSTRAP_ADMIN_PASSWORD"),
		secrets.DirLoader(dir),
	))
	if err != nil {
		return err
	}

	if v, ok := vault.Lookup("CRMAUTH_JWT_SECRET"); ok {
		cfg.Auth.JWTSecret = v
	}
	if v, ok := vault.Lookup("DATABASE_URL"); ok {
		cfg.Postgres.DSN = v
	}
	if v, ok := vault.Lookup("CRMAUTH_BOOTSTRAP_ADMIN_PASSWORD"); ok {
		cfg.Bootstrap.AdminPassword = v
	}
	return nil
}
