// Package batch runs a generator over an ordered question list and persists
// the results as a report table.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sqlcopilot/sqlcopilot/internal/nl2sql"
	"github.com/sqlcopilot/sqlcopilot/internal/observability"
	"github.com/sqlcopilot/sqlcopilot/internal/report"
	"github.com/sqlcopilot/sqlcopilot/internal/tabular"
)

const (
	questionPreviewRunes = 50
	sqlPreviewRunes      = 100
)

// Runner generates SQL for one question at a time, in input order.
type Runner struct {
	generator nl2sql.Generator
	logger    *slog.Logger
	progress  io.Writer
}

func NewRunner(generator nl2sql.Generator, logger *slog.Logger, progress io.Writer) *Runner {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Runner{generator: generator, logger: logger, progress: progress}
}

// Run returns one Generation per question in input order. Failed
// generations are kept with empty SQL.
func (r *Runner) Run(ctx context.Context, questions []string, tableDescription string) []report.Generation {
	total := len(questions)
	fmt.Fprintf(r.progress, "Generating SQL for %d questions\n", total)

	results := make([]report.Generation, 0, total)
	for i, question := range questions {
		fmt.Fprintf(r.progress, "[%d/%d] (%.1f%%) %s\n", i+1, total, float64(i+1)/float64(total)*100, preview(question, questionPreviewRunes))

		sql, elapsed := r.generator.Generate(ctx, question, tableDescription)
		results = append(results, report.Generation{
			Question:       question,
			SQL:            sql,
			ElapsedSeconds: report.RoundSeconds(elapsed.Seconds()),
		})

		fmt.Fprintf(r.progress, "SQL generation time: %.2fs\n", elapsed.Seconds())
		fmt.Fprintf(r.progress, "Generated SQL: %s\n", preview(sql, sqlPreviewRunes))
		fmt.Fprintln(r.progress, strings.Repeat("-", 50))
	}

	totalTime, average := Summary(results)
	fmt.Fprintf(r.progress, "Total time: %s, average: %s\n", FormatSeconds(totalTime), FormatSeconds(average))
	r.logger.InfoContext(ctx, "batch generation complete",
		slog.Int("questions", total),
		slog.Float64("total_seconds", totalTime),
	)
	return results
}

// RunToFile runs the batch and writes QA, SQL and time columns to path.
// The results are returned even when writing fails.
func (r *Runner) RunToFile(ctx context.Context, questions []string, tableDescription, path string) ([]report.Generation, error) {
	results := r.Run(ctx, questions, tableDescription)
	if err := tabular.WriteFile(path, ToTable(results)); err != nil {
		return results, fmt.Errorf("write results: %w", err)
	}
	fmt.Fprintf(r.progress, "Results saved to: %s\n", path)
	return results, nil
}

func ToTable(results []report.Generation) tabular.Table {
	table := tabular.Table{
		Columns: []string{tabular.ColumnQuestion, tabular.ColumnSQL, tabular.ColumnTime},
		Rows:    make([][]any, 0, len(results)),
	}
	for _, result := range results {
		table.Rows = append(table.Rows, []any{result.Question, result.SQL, result.ElapsedSeconds})
	}
	return table
}

// FromTable reads generations back from a report table. Only the SQL
// column is required.
func FromTable(table tabular.Table) ([]report.Generation, error) {
	if table.ColumnIndex(tabular.ColumnSQL) < 0 {
		return nil, fmt.Errorf("table has no %q column", tabular.ColumnSQL)
	}
	results := make([]report.Generation, 0, len(table.Rows))
	for i := range table.Rows {
		var seconds float64
		if raw := tabular.FormatCell(table.Cell(i, tabular.ColumnTime)); raw != "" {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid time %q: %w", i+1, raw, err)
			}
			seconds = parsed
		}
		results = append(results, report.Generation{
			Question:       tabular.FormatCell(table.Cell(i, tabular.ColumnQuestion)),
			SQL:            tabular.FormatCell(table.Cell(i, tabular.ColumnSQL)),
			ElapsedSeconds: seconds,
		})
	}
	return results, nil
}

// Summary returns the total and average elapsed seconds.
func Summary(results []report.Generation) (total, average float64) {
	for _, result := range results {
		total += result.ElapsedSeconds
	}
	if len(results) > 0 {
		average = total / float64(len(results))
	}
	return total, average
}

// FormatSeconds renders seconds as 1.23s, 2m3.45s or 1h2m3.45s.
func FormatSeconds(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", seconds)
	case d < time.Hour:
		minutes := int(d / time.Minute)
		return fmt.Sprintf("%dm%.2fs", minutes, seconds-float64(minutes*60))
	default:
		hours := int(d / time.Hour)
		minutes := int((d % time.Hour) / time.Minute)
		return fmt.Sprintf("%dh%dm%.2fs", hours, minutes, seconds-float64(hours*3600+minutes*60))
	}
}

func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
