package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sqlcopilot/sqlcopilot/internal/history"
	"github.com/sqlcopilot/sqlcopilot/internal/report"
)

const defaultListLimit = 20

type Repository struct {
	db *sql.DB
}

var _ history.Store = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

// SaveRun writes the run row and one item row per entry in a single
// transaction.
func (r *Repository) SaveRun(ctx context.Context, run history.Run) error {
	if run.ID == uuid.Nil {
		return fmt.Errorf("save run: id is required")
	}
	summary := run.Summary()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO generation_run (id, variant, model, total, succeeded, total_seconds, report_path, archive_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID.String(), run.Variant, run.Model, summary.Total, summary.Succeeded,
		summary.TotalSeconds, run.ReportPath, run.ArchiveKey, run.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, entry := range run.Entries {
		var evaluated, succeeded bool
		var kind, content string
		if entry.Evaluation != nil {
			evaluated = true
			succeeded = entry.Evaluation.Succeeded
			kind = string(entry.Evaluation.Kind)
			content = entry.Evaluation.Content
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO generation_run_item (run_id, position, question, generated_sql, elapsed_seconds, evaluated, succeeded, outcome_kind, outcome_content)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			run.ID.String(), i, entry.Generation.Question, entry.Generation.SQL,
			entry.Generation.ElapsedSeconds, evaluated, succeeded, kind, content,
		); err != nil {
			return fmt.Errorf("insert run item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns returns the newest runs first. limit <= 0 uses a default of 20.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]history.RunSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, variant, model, total, succeeded, total_seconds, report_path, archive_key, created_at
FROM generation_run
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]history.RunSummary, 0)
	for rows.Next() {
		var run history.RunSummary
		var id string
		if err := rows.Scan(&id, &run.Variant, &run.Model, &run.Total, &run.Succeeded,
			&run.TotalSeconds, &run.ReportPath, &run.ArchiveKey, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse run id %q: %w", id, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (history.Run, error) {
	run := history.Run{ID: id}
	if err := r.db.QueryRowContext(ctx, `
SELECT variant, model, report_path, archive_key, created_at
FROM generation_run
WHERE id = $1`, id.String()).Scan(&run.Variant, &run.Model, &run.ReportPath, &run.ArchiveKey, &run.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return history.Run{}, history.ErrNotFound
		}
		return history.Run{}, fmt.Errorf("get run: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT question, generated_sql, elapsed_seconds, evaluated, succeeded, outcome_kind, outcome_content
FROM generation_run_item
WHERE run_id = $1
ORDER BY position ASC`, id.String())
	if err != nil {
		return history.Run{}, fmt.Errorf("list run items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var entry report.Entry
		var evaluated, succeeded bool
		var kind, content string
		if err := rows.Scan(&entry.Generation.Question, &entry.Generation.SQL, &entry.Generation.ElapsedSeconds,
			&evaluated, &succeeded, &kind, &content); err != nil {
			return history.Run{}, fmt.Errorf("scan run item: %w", err)
		}
		if evaluated {
			entry.Evaluation = &report.Outcome{
				SQL:       entry.Generation.SQL,
				Succeeded: succeeded,
				Kind:      report.OutcomeKind(kind),
				Content:   content,
			}
		}
		run.Entries = append(run.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return history.Run{}, fmt.Errorf("iterate run items: %w", err)
	}
	return run, nil
}
