// Package storage archives written report files to object storage.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

var ErrReportNotFound = errors.New("archived report not found")

// ReportMeta is stored with every archived report as object metadata.
type ReportMeta struct {
	RunID    uuid.UUID
	Variant  string
	Model    string
	FileName string
}

type ArchivedReport struct {
	Key         string
	Size        int64
	ETag        string
	ContentType string
	ArchivedAt  time.Time
	Meta        ReportMeta
}

// ReportStore keeps report files under keys built by BuildReportKey. Keys of
// any other shape are rejected.
type ReportStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, meta ReportMeta) (ArchivedReport, error)
	Describe(ctx context.Context, key string) (ArchivedReport, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}
