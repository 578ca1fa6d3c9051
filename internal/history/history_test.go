package history

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sqlcopilot/sqlcopilot/internal/report"
)

func TestNewRunSummarisesEntries(t *testing.T) {
	batch := report.NewBatchReport([]report.Generation{
		{Question: "q1", SQL: "SELECT 1", ElapsedSeconds: 1.254},
		{Question: "q2", SQL: "", ElapsedSeconds: 0.5},
	})
	batch.Entries[0].Evaluation = &report.Outcome{SQL: "SELECT 1", Succeeded: true, Kind: report.KindSuccess}

	now := time.Date(2026, time.March, 3, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	run := NewRun("qwen_turbo", "qwen-turbo", batch, now)
	if run.ID == uuid.Nil {
		t.Fatal("expected run id")
	}
	if run.CreatedAt.Location() != time.UTC {
		t.Fatalf("CreatedAt = %v, want UTC", run.CreatedAt)
	}

	summary := run.Summary()
	if summary.Total != 2 || summary.Succeeded != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.TotalSeconds != 1.75 {
		t.Fatalf("TotalSeconds = %v", summary.TotalSeconds)
	}
	if got := summary.Score().Percent(); got != "50.0%" {
		t.Fatalf("Percent() = %q", got)
	}
}
