package query

import (
	"context"
	"errors"
	"time"
)

var ErrNoResultSet = errors.New("statement returned no result set")

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// Session runs statements inside one scoped unit of work. Close must be
// called on every path and discards any changes the session made.
type Session interface {
	Execute(ctx context.Context, statement string) (Result, error)
	Close() error
}

type Engine interface {
	OpenSession(ctx context.Context) (Session, error)
	Close() error
}

// Pinger is implemented by engines that can check reachability without
// opening a session.
type Pinger interface {
	Ping(ctx context.Context) error
}
