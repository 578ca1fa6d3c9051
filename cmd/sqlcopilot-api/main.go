package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlcopilot/sqlcopilot/internal/api"
	"github.com/sqlcopilot/sqlcopilot/internal/auth"
	"github.com/sqlcopilot/sqlcopilot/internal/batch"
	"github.com/sqlcopilot/sqlcopilot/internal/config"
	"github.com/sqlcopilot/sqlcopilot/internal/evaluate"
	historypostgres "github.com/sqlcopilot/sqlcopilot/internal/history/postgres"
	"github.com/sqlcopilot/sqlcopilot/internal/nl2sql"
	"github.com/sqlcopilot/sqlcopilot/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlcopilot-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	evaluator := evaluate.New(cfg.Database, logger)
	defer func() { _ = evaluator.Close() }()

	tableDescription, err := batch.ReadTableDescription(cfg.Files.TableDescription)
	if err != nil {
		logger.Warn("table description unavailable, requests must carry their own",
			slog.String("path", cfg.Files.TableDescription),
			slog.Any("error", err),
		)
	}

	checks := []api.ReadinessCheck{api.CheckConnection("database", evaluator.TestConnection)}
	if cfg.History.Enabled {
		historyDB, err := historypostgres.Open(context.Background(), historypostgres.DBConfig{DSN: cfg.History.DSN})
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = historyDB.Close() }()
		checks = append(checks, api.CheckConnection("history", historypostgres.NewRepository(historyDB).HealthCheck))
	}

	deps := api.Dependencies{
		Logger:            logger,
		Evaluator:         evaluator,
		TableDescription:  tableDescription,
		DefaultVariant:    nl2sql.VariantTurbo,
		Readiness:         api.CombineReadinessChecks(checks...),
		DependencyTimeout: 2 * time.Second,
		Generators: func(ctx context.Context, variant nl2sql.Variant) (nl2sql.Generator, error) {
			return nl2sql.NewGenerator(ctx, variant, nl2sql.Options{Config: cfg, Logger: logger})
		},
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		if validator.Len() == 0 {
			logger.Warn("auth required but no static keys configured, every protected request will be rejected")
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
