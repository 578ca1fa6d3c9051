package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sqlcopilot/sqlcopilot/internal/nl2sql"
	"github.com/sqlcopilot/sqlcopilot/internal/report"
)

type stubGenerator struct {
	sql       string
	questions []string
	tables    []string
}

func (g *stubGenerator) Generate(_ context.Context, question, tableDescription string) (string, time.Duration) {
	g.questions = append(g.questions, question)
	g.tables = append(g.tables, tableDescription)
	return g.sql, 1250 * time.Millisecond
}

type stubEvaluator struct {
	seen []string
}

func (e *stubEvaluator) Evaluate(_ context.Context, sqlText string) report.Outcome {
	e.seen = append(e.seen, sqlText)
	if strings.TrimSpace(sqlText) == "" {
		return report.Outcome{SQL: sqlText, Kind: report.KindError, Content: "SQL is empty"}
	}
	return report.Outcome{SQL: sqlText, Succeeded: true, Kind: report.KindSuccess, Content: "| n |\n| --- |\n| 1 |"}
}

func staticGenerators(g nl2sql.Generator) GeneratorFactory {
	return func(context.Context, nl2sql.Variant) (nl2sql.Generator, error) {
		return g, nil
	}
}

func TestGenerateUsesDefaultTableDescription(t *testing.T) {
	gen := &stubGenerator{sql: "SELECT COUNT(*) FROM users"}
	h := NewHandler(loadConfig(t, nil), Dependencies{
		Generators:       staticGenerators(gen),
		TableDescription: "users(id, name)",
	})

	rr := postJSON(h, "/v1/generate", `{"question":"how many users?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var body generateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body.SQL != "SELECT COUNT(*) FROM users" || body.Variant != nl2sql.VariantTurbo || body.ElapsedSeconds != 1.25 {
		t.Fatalf("body = %+v", body)
	}
	if body.Evaluation != nil {
		t.Fatalf("Evaluation = %+v, want nil", body.Evaluation)
	}
	if gen.tables[0] != "users(id, name)" {
		t.Fatalf("table description = %q", gen.tables[0])
	}
}

func TestGenerateWithEvaluation(t *testing.T) {
	eval := &stubEvaluator{}
	h := NewHandler(loadConfig(t, nil), Dependencies{
		Generators: staticGenerators(&stubGenerator{sql: "SELECT 1"}),
		Evaluator:  eval,
	})

	rr := postJSON(h, "/v1/generate", `{"question":"one","variant":"QWEN_CODER","table_description":"t(a)","evaluate":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body["variant"] != "qwen_coder" {
		t.Fatalf("variant = %v", body["variant"])
	}
	evaluation, ok := body["evaluation"].(map[string]any)
	if !ok || evaluation["runnable"] != "Yes" || evaluation["kind"] != "success" {
		t.Fatalf("evaluation = %v", body["evaluation"])
	}
	if len(eval.seen) != 1 || eval.seen[0] != "SELECT 1" {
		t.Fatalf("evaluated = %v", eval.seen)
	}
}

func TestGenerateBuildsEachVariantOnce(t *testing.T) {
	builds := map[nl2sql.Variant]int{}
	h := NewHandler(loadConfig(t, nil), Dependencies{
		Generators: func(_ context.Context, v nl2sql.Variant) (nl2sql.Generator, error) {
			builds[v]++
			return &stubGenerator{sql: "SELECT 1"}, nil
		},
	})
	for i := 0; i < 3; i++ {
		if rr := postJSON(h, "/v1/generate", `{"question":"q","variant":"local_qwen"}`); rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
	}
	if builds[nl2sql.VariantLocal] != 1 {
		t.Fatalf("builds = %v", builds)
	}
}

func TestGenerateRejectsBadRequests(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{
		Generators: staticGenerators(&stubGenerator{sql: "SELECT 1"}),
	})
	cases := []struct {
		body string
		want int
		code string
	}{
		{`{"question":"  "}`, http.StatusBadRequest, "QUESTION_REQUIRED"},
		{`{"question":"q","variant":"gpt"}`, http.StatusBadRequest, "UNKNOWN_VARIANT"},
		{`{"question":"q","extra":1}`, http.StatusBadRequest, "INVALID_JSON"},
		{`{"question":"q","evaluate":true}`, http.StatusNotImplemented, "EVALUATION_NOT_CONFIGURED"},
	}
	for _, tc := range cases {
		rr := postJSON(h, "/v1/generate", tc.body)
		if rr.Code != tc.want || !strings.Contains(rr.Body.String(), tc.code) {
			t.Fatalf("body %s: status = %d, response = %s", tc.body, rr.Code, rr.Body.String())
		}
	}
}

func TestGenerateReportsFailures(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{
		Generators: staticGenerators(&stubGenerator{sql: ""}),
	})
	if rr := postJSON(h, "/v1/generate", `{"question":"q"}`); rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadGateway)
	}

	h = NewHandler(loadConfig(t, nil), Dependencies{
		Generators: func(context.Context, nl2sql.Variant) (nl2sql.Generator, error) {
			return nil, errors.New("model artifact missing")
		},
	})
	if rr := postJSON(h, "/v1/generate", `{"question":"q"}`); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	h = NewHandler(loadConfig(t, nil), Dependencies{})
	if rr := postJSON(h, "/v1/generate", `{"question":"q"}`); rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotImplemented)
	}
}

func TestEvaluateReturnsOutcome(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{Evaluator: &stubEvaluator{}})

	rr := postJSON(h, "/v1/evaluate", `{"sql":""}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body["succeeded"] != false || body["runnable"] != "No SQL is empty" {
		t.Fatalf("body = %v", body)
	}

	if rr := postJSON(NewHandler(loadConfig(t, nil), Dependencies{}), "/v1/evaluate", `{"sql":"SELECT 1"}`); rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
