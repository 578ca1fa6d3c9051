// Package history records completed batch runs so success rates can be
// compared across models over time.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sqlcopilot/sqlcopilot/internal/report"
)

var ErrNotFound = errors.New("history: not found")

type Store interface {
	HealthCheck(ctx context.Context) error
	SaveRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	GetRun(ctx context.Context, id uuid.UUID) (Run, error)
}

// Run is one batch generation, optionally followed by evaluation.
type Run struct {
	ID         uuid.UUID
	Variant    string
	Model      string
	ReportPath string
	ArchiveKey string
	CreatedAt  time.Time
	Entries    []report.Entry
}

type RunSummary struct {
	ID           uuid.UUID
	Variant      string
	Model        string
	Total        int
	Succeeded    int
	TotalSeconds float64
	ReportPath   string
	ArchiveKey   string
	CreatedAt    time.Time
}

// NewRun stamps a fresh run id and creation time on a batch report.
func NewRun(variant, model string, batch report.BatchReport, now time.Time) Run {
	return Run{
		ID:        uuid.New(),
		Variant:   variant,
		Model:     model,
		CreatedAt: now.UTC(),
		Entries:   batch.Entries,
	}
}

// Summary derives the aggregate row stored alongside the run's items.
func (r Run) Summary() RunSummary {
	score := report.BatchReport{Entries: r.Entries}.Score()
	total := 0.0
	for _, entry := range r.Entries {
		total += entry.Generation.ElapsedSeconds
	}
	return RunSummary{
		ID:           r.ID,
		Variant:      r.Variant,
		Model:        r.Model,
		Total:        score.Total,
		Succeeded:    score.Succeeded,
		TotalSeconds: report.RoundSeconds(total),
		ReportPath:   r.ReportPath,
		ArchiveKey:   r.ArchiveKey,
		CreatedAt:    r.CreatedAt,
	}
}

// Score of the summarised run.
func (s RunSummary) Score() report.Score {
	return report.Score{Total: s.Total, Succeeded: s.Succeeded}
}
