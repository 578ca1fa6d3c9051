// Package evaluate executes generated SQL and reports success, empty or
// error outcomes, singly or over a report file.
package evaluate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sqlcopilot/sqlcopilot/internal/config"
	"github.com/sqlcopilot/sqlcopilot/internal/observability"
	"github.com/sqlcopilot/sqlcopilot/internal/query"
	"github.com/sqlcopilot/sqlcopilot/internal/query/sqldb"
	"github.com/sqlcopilot/sqlcopilot/internal/report"
)

const (
	msgEmptySQL    = "SQL is empty"
	msgEmptyResult = "Query result is empty"
	nullCell       = "NULL"
)

// Evaluator runs one statement per call against a lazily opened engine.
// The engine is created on first use and shared by every later call; each
// call gets its own session.
type Evaluator struct {
	open   func() (query.Engine, error)
	logger *slog.Logger

	once      sync.Once
	engine    query.Engine
	engineErr error
}

func New(cfg config.DatabaseConfig, logger *slog.Logger) *Evaluator {
	return newEvaluator(func() (query.Engine, error) { return sqldb.Open(cfg) }, logger)
}

func NewWithEngine(engine query.Engine, logger *slog.Logger) *Evaluator {
	return newEvaluator(func() (query.Engine, error) { return engine, nil }, logger)
}

func newEvaluator(open func() (query.Engine, error), logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Evaluator{open: open, logger: logger}
}

func (e *Evaluator) getEngine() (query.Engine, error) {
	e.once.Do(func() {
		e.engine, e.engineErr = e.open()
		if e.engineErr != nil {
			e.logger.Error("database engine unavailable", slog.Any("error", e.engineErr))
		}
	})
	return e.engine, e.engineErr
}

// Evaluate never returns an error: every failure is an error outcome. Only
// the text before the first ';' is executed.
func (e *Evaluator) Evaluate(ctx context.Context, sqlText string) report.Outcome {
	start := time.Now()
	outcome := e.evaluate(ctx, sqlText)
	observability.ObserveEvaluation(string(outcome.Kind), time.Since(start))
	return outcome
}

func (e *Evaluator) evaluate(ctx context.Context, sqlText string) report.Outcome {
	if strings.TrimSpace(sqlText) == "" {
		return errorOutcome(sqlText, msgEmptySQL)
	}
	statement, _, _ := strings.Cut(sqlText, ";")
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return errorOutcome(sqlText, msgEmptySQL)
	}

	engine, err := e.getEngine()
	if err != nil {
		return errorOutcome(sqlText, "SQL execution error: "+err.Error())
	}
	session, err := engine.OpenSession(ctx)
	if err != nil {
		return errorOutcome(sqlText, "SQL execution error: "+err.Error())
	}
	defer func() {
		if err := session.Close(); err != nil {
			e.logger.WarnContext(ctx, "close evaluation session", slog.Any("error", err))
		}
	}()

	result, err := session.Execute(ctx, statement)
	if err != nil {
		e.logger.DebugContext(ctx, "sql execution failed", slog.String("statement", statement), slog.Any("error", err))
		return errorOutcome(sqlText, "SQL execution error: "+err.Error())
	}
	if len(result.Rows) == 0 {
		return report.Outcome{SQL: sqlText, Succeeded: true, Kind: report.KindEmpty, Content: msgEmptyResult}
	}
	return report.Outcome{SQL: sqlText, Succeeded: true, Kind: report.KindSuccess, Content: RenderTable(result.Columns, result.Rows)}
}

// TestConnection pings the engine when it supports that, then runs
// SELECT 1 in a throwaway session.
func (e *Evaluator) TestConnection(ctx context.Context) error {
	engine, err := e.getEngine()
	if err != nil {
		return err
	}
	if pinger, ok := engine.(query.Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			return err
		}
	}
	session, err := engine.OpenSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()
	if _, err := session.Execute(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("test query: %w", err)
	}
	return nil
}

// EvaluateGenerations evaluates every generation in order. onEntry, when
// set, sees each entry as soon as its evaluation is attached.
func (e *Evaluator) EvaluateGenerations(ctx context.Context, generations []report.Generation, onEntry func(index int, entry report.Entry)) report.BatchReport {
	batch := report.NewBatchReport(generations)
	for i := range batch.Entries {
		outcome := e.Evaluate(ctx, batch.Entries[i].Generation.SQL)
		batch.Entries[i].Evaluation = &outcome
		if onEntry != nil {
			onEntry(i, batch.Entries[i])
		}
	}
	return batch
}

func (e *Evaluator) Close() error {
	if e.engine == nil {
		return nil
	}
	return e.engine.Close()
}

func errorOutcome(sqlText, message string) report.Outcome {
	return report.Outcome{SQL: sqlText, Succeeded: false, Kind: report.KindError, Content: message}
}
