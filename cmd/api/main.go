package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/personacraft-backend/api/routes"
	"github.com/angelmondragon/personacraft-backend/internal/enrichment"
	"github.com/angelmondragon/personacraft-backend/internal/generation"
	"github.com/angelmondragon/personacraft-backend/internal/personas"
	"github.com/angelmondragon/personacraft-backend/internal/preferences"
	"github.com/angelmondragon/personacraft-backend/internal/users"
	stackauthwebhook "github.com/angelmondragon/personacraft-backend/internal/webhooks/stackauth"
	"github.com/angelmondragon/personacraft-backend/pkg/config"
	"github.com/angelmondragon/personacraft-backend/pkg/db"
	"github.com/angelmondragon/personacraft-backend/pkg/env"
	"github.com/angelmondragon/personacraft-backend/pkg/gemini"
	"github.com/angelmondragon/personacraft-backend/pkg/logger"
	"github.com/angelmondragon/personacraft-backend/pkg/metrics"
	"github.com/angelmondragon/personacraft-backend/pkg/migrate"
	"github.com/angelmondragon/personacraft-backend/pkg/qloo"
	"github.com/angelmondragon/personacraft-backend/pkg/redis"
	"github.com/angelmondragon/personacraft-backend/pkg/stackauth"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipeline := metrics.NewPipeline(registry)

	var stackClient *stackauth.Client
	if cfg.StackAuth.ProjectID != "" && cfg.StackAuth.SecretServerKey != "" {
		stackClient, err = stackauth.NewClient(
			cfg.StackAuth.ProjectID,
			cfg.StackAuth.SecretServerKey,
			stackauth.WithBaseURL(cfg.StackAuth.BaseURL),
			stackauth.WithTimeouts(cfg.StackAuth.RequestTimeout, cfg.StackAuth.MaxElapsed),
		)
		requireResource(ctx, logg, "stack auth client", err)
	} else {
		logg.Warn(ctx, "stack auth credentials not set, private routes will reject requests")
	}

	usersService, err := users.NewService(users.ServiceParams{
		Repo: users.NewRepository(dbClient.DB()),
		Tx:   dbClient,
	})
	requireResource(ctx, logg, "users service", err)

	validator := personas.NewValidator(nil)
	personasService, err := personas.NewService(personas.ServiceParams{
		Repo:      personas.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		Users:     usersService,
		Validator: validator,
	})
	requireResource(ctx, logg, "personas service", err)

	preferencesService, err := preferences.NewService(preferences.ServiceParams{
		Repo:  preferences.NewRepository(dbClient.DB()),
		Users: usersService,
	})
	requireResource(ctx, logg, "preferences service", err)

	deps := routes.Dependencies{
		DB:          dbClient,
		Redis:       redisClient,
		Gatherer:    registry,
		StackAuth:   stackClient,
		Users:       usersService,
		Personas:    personasService,
		Preferences: preferencesService,
	}

	if cfg.Gemini.APIKey != "" {
		orchestrator, err := newOrchestrator(cfg, logg, pipeline, usersService, personasService, preferencesService, validator)
		requireResource(ctx, logg, "generation orchestrator", err)
		deps.Generator = orchestrator
	} else {
		logg.Warn(ctx, "gemini api key not set, persona generation is disabled")
	}

	if cfg.StackAuth.WebhookSecret != "" {
		ingestor, err := newStackAuthIngestor(cfg, logg, redisClient, usersService, pipeline)
		requireResource(ctx, logg, "stack auth webhook", err)
		deps.StackIngestor = ingestor
	} else {
		logg.Warn(ctx, "stack auth webhook secret not set, webhook deliveries will be rejected")
	}

	addr := ":" + env.First(cfg.App.Port, "PORT")
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

func newOrchestrator(
	cfg *config.Config,
	logg *logger.Logger,
	pipeline *metrics.Pipeline,
	usersService users.Service,
	personasService personas.Service,
	preferencesService preferences.Service,
	validator *personas.Validator,
) (*generation.Orchestrator, error) {
	geminiClient, err := gemini.NewClient(
		cfg.Gemini.APIKey,
		gemini.WithBaseURL(cfg.Gemini.BaseURL),
		gemini.WithModel(cfg.Gemini.Model),
		gemini.WithTimeout(cfg.Gemini.Timeout),
		gemini.WithRetry(cfg.Gemini.MaxRetries, time.Second),
	)
	if err != nil {
		return nil, err
	}

	adapterParams := enrichment.AdapterParams{
		Logger:      logg,
		Metrics:     pipeline,
		Take:        cfg.Qloo.ResultsPerCategory,
		Concurrency: cfg.Qloo.Concurrency,
	}
	if cfg.Qloo.Enabled() {
		qlooClient, err := qloo.NewClient(
			cfg.Qloo.APIKey,
			qloo.WithBaseURL(cfg.Qloo.BaseURL),
			qloo.WithTimeout(cfg.Qloo.Timeout),
		)
		if err != nil {
			return nil, err
		}
		adapterParams.Client = qlooClient
	} else {
		logg.Warn(context.Background(), "qloo api key not set, cultural data will use local fallback")
	}
	adapter, err := enrichment.NewAdapter(adapterParams)
	if err != nil {
		return nil, err
	}

	return generation.NewOrchestrator(generation.Params{
		LLM:          geminiClient,
		Cultural:     adapter,
		Store:        personasService,
		Users:        usersService,
		Usage:        preferencesService,
		Validator:    validator,
		Logger:       logg,
		Metrics:      pipeline,
		DefaultCount: cfg.Generation.DefaultCount,
		MaxCount:     cfg.Generation.MaxCount,
		Temperature:  cfg.Gemini.Temperature,
	})
}

func newStackAuthIngestor(cfg *config.Config, logg *logger.Logger, store redis.IdempotencyStore, usersService users.Service, pipeline *metrics.Pipeline) (*stackauthwebhook.Ingestor, error) {
	handler, err := stackauthwebhook.NewService(usersService)
	if err != nil {
		return nil, err
	}
	verifier, err := stackauth.NewVerifier(cfg.StackAuth.WebhookSecret, cfg.StackAuth.WebhookTolerance)
	if err != nil {
		return nil, err
	}
	guard, err := stackauthwebhook.NewIdempotencyGuard(store, cfg.Webhook.IdempotencyTTL, "stack-auth")
	if err != nil {
		return nil, err
	}
	return stackauthwebhook.NewIngestor(stackauthwebhook.IngestorParams{
		Verifier: verifier,
		Handler:  handler,
		Guard:    guard,
		Logger:   logg,
		Metrics:  pipeline,
	})
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
