package evaluate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlcopilot/sqlcopilot/internal/batch"
	"github.com/sqlcopilot/sqlcopilot/internal/report"
	"github.com/sqlcopilot/sqlcopilot/internal/tabular"
)

const (
	ColumnRunnable = tabular.ColumnRunnable
	ColumnResult   = tabular.ColumnResult

	markerNoSQL = "No (no SQL found)"
)

// FileReport carries the evaluated generations reloaded from the input
// alongside the file paths and score.
type FileReport struct {
	Input  string
	Output string
	Score  report.Score
	Report report.BatchReport
}

// RowResult is passed to the row callback after each evaluated row.
type RowResult struct {
	Index   int
	Total   int
	SQL     string
	Marker  string
	Outcome report.Outcome
}

type FileOptions struct {
	OnRow func(RowResult)
}

// EvaluateFile reloads the generations of a report table, evaluates them
// in row order and writes runnable and result columns back. An empty output
// path overwrites the input file.
func (e *Evaluator) EvaluateFile(ctx context.Context, input, output string, opts FileOptions) (FileReport, error) {
	table, err := tabular.ReadFile(input)
	if err != nil {
		return FileReport{}, fmt.Errorf("read input: %w", err)
	}
	generations, err := batch.FromTable(table)
	if err != nil {
		return FileReport{}, fmt.Errorf("input %q: %w", input, err)
	}

	markers := make([]string, len(generations))
	runnable := make([]any, len(generations))
	results := make([]any, len(generations))
	evaluated := e.EvaluateGenerations(ctx, generations, func(i int, entry report.Entry) {
		outcome := *entry.Evaluation
		if strings.TrimSpace(entry.Generation.SQL) == "" {
			markers[i] = markerNoSQL
		} else {
			markers[i] = outcome.Marker()
		}
		runnable[i] = markers[i]
		results[i] = outcome.Content
		if opts.OnRow != nil {
			opts.OnRow(RowResult{Index: i + 1, Total: len(generations), SQL: entry.Generation.SQL, Marker: markers[i], Outcome: outcome})
		}
	})
	if err := table.SetColumn(ColumnRunnable, runnable); err != nil {
		return FileReport{}, err
	}
	if err := table.SetColumn(ColumnResult, results); err != nil {
		return FileReport{}, err
	}

	if output == "" {
		output = input
		e.logger.WarnContext(ctx, "overwriting input file with evaluation results", slog.String("path", input))
	}
	if err := tabular.WriteFile(output, table); err != nil {
		return FileReport{}, fmt.Errorf("write output: %w", err)
	}

	score := report.ScoreMarkers(markers)
	e.logger.InfoContext(ctx, "evaluation file complete",
		slog.String("input", input),
		slog.String("output", output),
		slog.Int("total", score.Total),
		slog.Int("succeeded", score.Succeeded),
		slog.String("success_rate", score.Percent()),
	)
	return FileReport{Input: input, Output: output, Score: score, Report: evaluated}, nil
}
