package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoraes-92/fiscal-facil-2.0/internal/config"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/domain"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/handler"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/cache"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/client"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/observability"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/resilience"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/infra/tokenstore"
	"github.com/jmoraes-92/fiscal-facil-2.0/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("backend_url", cfg.BackendURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("wizard_ttl", cfg.WizardTTL),
		zap.String("session_file", cfg.SessionFile),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "fiscal-facil-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}
	cb := resilience.NewCircuitBreaker("fiscal-backend")

	// --- Backend client ---
	// A zero HTTPTimeout leaves requests unbounded, as the browser client does.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	fiscal := client.NewFiscalClient(httpClient, cfg.BackendURL, cb, resilienceCfg, metrics, logger)

	// --- Session ---
	holder := service.NewSessionHolder(fiscal, tokenstore.NewFile(cfg.SessionFile), logger)
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if sess := holder.Init(initCtx); sess.Authenticated() {
		logger.Info("resumed persisted session")
	}
	initCancel()

	// --- Services ---
	directory := service.NewCompanyDirectory(
		fiscal,
		cache.New[*domain.RegistryRecord](cfg.CacheTTL),
		cache.New[[]domain.Company](cfg.CacheTTL),
		metrics,
		logger,
	)
	registrations := service.NewRegistrations(
		directory,
		cache.New[*service.RegistrationFlow](cfg.WizardTTL),
		metrics,
		logger,
	)
	workspaces := service.NewWorkspaces(
		fiscal,
		fiscal,
		fiscal,
		cache.New[*service.Workspace](cfg.WizardTTL),
		metrics,
		logger,
	)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Session:       holder,
		Companies:     directory,
		Registrations: registrations,
		Workspaces:    workspaces,
		Backend:       fiscal,
	}, metrics, logger)

	// --- Server ---
	// Uploads and report downloads have no client-side deadline, so no WriteTimeout.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
