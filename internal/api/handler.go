// Package api exposes the generation and evaluation pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqlcopilot/sqlcopilot/internal/auth"
	"github.com/sqlcopilot/sqlcopilot/internal/config"
	"github.com/sqlcopilot/sqlcopilot/internal/nl2sql"
	"github.com/sqlcopilot/sqlcopilot/internal/observability"
	"github.com/sqlcopilot/sqlcopilot/internal/report"
)

type ReadinessCheck func(ctx context.Context) error

// GeneratorFactory builds the generator for a variant on first use.
type GeneratorFactory func(ctx context.Context, variant nl2sql.Variant) (nl2sql.Generator, error)

type SQLEvaluator interface {
	Evaluate(ctx context.Context, sqlText string) report.Outcome
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Generators        GeneratorFactory
	Evaluator         SQLEvaluator
	DefaultVariant    nl2sql.Variant
	// TableDescription is used when a request does not carry its own.
	TableDescription string
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	p := newPipeline(deps)
	routes := map[string]http.Handler{
		"POST /v1/generate": auth.RequireRole(auth.RoleGenerate, http.HandlerFunc(p.handleGenerate)),
		"POST /v1/evaluate": auth.RequireRole(auth.RoleEvaluate, http.HandlerFunc(p.handleEvaluate)),
	}
	for pattern, handler := range routes {
		mux.Handle(pattern, protect(cfg, deps, handler))
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func protect(cfg config.Config, deps Dependencies, handler http.Handler) http.Handler {
	if !cfg.Auth.Required {
		return handler
	}
	if deps.AuthMiddleware == nil {
		if deps.Logger != nil {
			deps.Logger.Error("auth required but auth middleware missing")
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
		})
	}
	return deps.AuthMiddleware(handler)
}

// CheckConnection adapts a connectivity check such as the evaluator's
// TestConnection into a readiness check.
func CheckConnection(name string, ping func(ctx context.Context) error) ReadinessCheck {
	return func(ctx context.Context) error {
		if ping == nil {
			return errors.New(name + " is not configured")
		}
		if err := ping(ctx); err != nil {
			return errors.New(name + ": " + err.Error())
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
