package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"

	"github.com/sqlcopilot/sqlcopilot/internal/config"
	"github.com/sqlcopilot/sqlcopilot/internal/query"
)

// Engine is a query.Engine over database/sql. The pool is opened lazily by
// the driver; no connection is made until the first session.
type Engine struct {
	db     *sql.DB
	driver string
}

func Open(cfg config.DatabaseConfig) (*Engine, error) {
	target, err := ParseURL(URLFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(target.Driver, target.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", target.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return &Engine{db: db, driver: target.Driver}, nil
}

func NewEngineWithDB(db *sql.DB, driver string) *Engine {
	return &Engine{db: db, driver: driver}
}

func (e *Engine) Ping(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s db: %w", e.driver, err)
	}
	return nil
}

var _ query.Pinger = (*Engine)(nil)

// OpenSession starts a transaction. The session never commits.
func (e *Engine) OpenSession(ctx context.Context) (query.Session, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	return &session{tx: tx}, nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

type session struct {
	tx *sql.Tx
}

func (s *session) Execute(ctx context.Context, statement string) (query.Result, error) {
	start := time.Now()
	rows, err := s.tx.QueryContext(ctx, statement)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}
	if len(columns) == 0 {
		return query.Result{}, query.ErrNoResultSet
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return query.Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

func (s *session) Close() error {
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
