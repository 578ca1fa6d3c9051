package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/sqlcopilot/sqlcopilot/internal/nl2sql"
	"github.com/sqlcopilot/sqlcopilot/internal/report"
)

const maxRequestBytes = 1 << 20

type generateRequest struct {
	Question         string `json:"question"`
	TableDescription string `json:"table_description,omitempty"`
	Variant          string `json:"variant,omitempty"`
	Evaluate         bool   `json:"evaluate,omitempty"`
}

type generateResponse struct {
	SQL            string           `json:"sql"`
	ElapsedSeconds float64          `json:"elapsed_seconds"`
	Variant        nl2sql.Variant   `json:"variant"`
	Evaluation     *outcomeResponse `json:"evaluation,omitempty"`
}

type evaluateRequest struct {
	SQL string `json:"sql"`
}

type outcomeResponse struct {
	report.Outcome
	Runnable string `json:"runnable"`
}

// pipeline serialises requests through the shared generators and evaluator.
type pipeline struct {
	deps       Dependencies
	mu         sync.Mutex
	generators map[nl2sql.Variant]nl2sql.Generator
}

func newPipeline(deps Dependencies) *pipeline {
	if deps.DefaultVariant == "" {
		deps.DefaultVariant = nl2sql.VariantTurbo
	}
	return &pipeline{deps: deps, generators: map[nl2sql.Variant]nl2sql.Generator{}}
}

func (p *pipeline) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if p.deps.Generators == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "GENERATION_NOT_CONFIGURED", "sql generation is not configured", false, nil)
		return
	}
	var req generateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}
	variant := p.deps.DefaultVariant
	if strings.TrimSpace(req.Variant) != "" {
		parsed, err := nl2sql.ParseVariant(req.Variant)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "UNKNOWN_VARIANT", err.Error(), false, map[string]any{"variants": nl2sql.Variants()})
			return
		}
		variant = parsed
	}
	if req.Evaluate && p.deps.Evaluator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EVALUATION_NOT_CONFIGURED", "sql evaluation is not configured", false, nil)
		return
	}
	description := req.TableDescription
	if strings.TrimSpace(description) == "" {
		description = p.deps.TableDescription
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	generator, err := p.generator(r, variant)
	if err != nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "GENERATOR_UNAVAILABLE", err.Error(), true, map[string]any{"variant": variant})
		return
	}
	sqlText, elapsed := generator.Generate(r.Context(), question, description)
	seconds := report.RoundSeconds(elapsed.Seconds())
	if strings.TrimSpace(sqlText) == "" {
		writeError(r.Context(), w, http.StatusBadGateway, "GENERATION_FAILED", "model returned no SQL", true, map[string]any{
			"variant":         variant,
			"elapsed_seconds": seconds,
		})
		return
	}

	resp := generateResponse{SQL: sqlText, ElapsedSeconds: seconds, Variant: variant}
	if req.Evaluate {
		outcome := p.deps.Evaluator.Evaluate(r.Context(), sqlText)
		resp.Evaluation = &outcomeResponse{Outcome: outcome, Runnable: outcome.Marker()}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (p *pipeline) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if p.deps.Evaluator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EVALUATION_NOT_CONFIGURED", "sql evaluation is not configured", false, nil)
		return
	}
	var req evaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	outcome := p.deps.Evaluator.Evaluate(r.Context(), req.SQL)
	writeJSON(w, http.StatusOK, outcomeResponse{Outcome: outcome, Runnable: outcome.Marker()})
}

// generator must be called with p.mu held.
func (p *pipeline) generator(r *http.Request, variant nl2sql.Variant) (nl2sql.Generator, error) {
	if g, ok := p.generators[variant]; ok {
		return g, nil
	}
	g, err := p.deps.Generators(r.Context(), variant)
	if err != nil {
		if p.deps.Logger != nil {
			p.deps.Logger.ErrorContext(r.Context(), "build generator failed",
				slog.String("variant", string(variant)),
				slog.Any("error", err),
			)
		}
		return nil, err
	}
	p.generators[variant] = g
	return g, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(r.Context(), w, status, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return false
	}
	return true
}
