package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteMetricsFileIncludesPipelineMetrics(t *testing.T) {
	ObserveGeneration("qwen_turbo", "ok", 1200*time.Millisecond)
	ObserveEvaluation("success", 30*time.Millisecond)

	path := filepath.Join(t.TempDir(), "nested", "sqlcopilot.prom")
	if err := WriteMetricsFile(path); err != nil {
		t.Fatalf("WriteMetricsFile() error = %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	body := string(raw)
	for _, want := range []string{
		`sqlcopilot_generation_requests_total{outcome="ok",variant="qwen_turbo"}`,
		`sqlcopilot_evaluation_outcomes_total{kind="success"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics file missing %q", want)
		}
	}
}

func TestWriteMetricsFileIgnoresEmptyPath(t *testing.T) {
	if err := WriteMetricsFile(""); err != nil {
		t.Fatalf("WriteMetricsFile() error = %v", err)
	}
}
