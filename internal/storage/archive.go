package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

type Archiver struct {
	store ReportStore
	now   func() time.Time
}

func NewArchiver(store ReportStore) *Archiver {
	return &Archiver{store: store, now: time.Now}
}

// ArchiveFile uploads a local report under its run's key. The stored object
// is read back; one whose size or run id differs from what was sent is
// removed and reported.
func (a *Archiver) ArchiveFile(ctx context.Context, meta ReportMeta, localPath string) (ArchivedReport, error) {
	meta.FileName = filepath.Base(localPath)
	key, err := BuildReportKey(meta.RunID, a.now(), meta.FileName)
	if err != nil {
		return ArchivedReport{}, err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return ArchivedReport{}, fmt.Errorf("open report %q: %w", localPath, err)
	}
	defer func() { _ = file.Close() }()
	stat, err := file.Stat()
	if err != nil {
		return ArchivedReport{}, fmt.Errorf("stat report %q: %w", localPath, err)
	}

	if _, err := a.store.Upload(ctx, key, file, stat.Size(), meta); err != nil {
		return ArchivedReport{}, err
	}
	stored, err := a.store.Describe(ctx, key)
	if err != nil {
		return ArchivedReport{}, fmt.Errorf("verify archived report %q: %w", key, err)
	}
	switch {
	case stored.Size != stat.Size():
		_ = a.store.Remove(ctx, key)
		return ArchivedReport{}, fmt.Errorf("archived %q has %d bytes, want %d", key, stored.Size, stat.Size())
	case stored.Meta.RunID != meta.RunID:
		_ = a.store.Remove(ctx, key)
		return ArchivedReport{}, fmt.Errorf("archived %q belongs to run %s, want %s", key, stored.Meta.RunID, meta.RunID)
	}
	return stored, nil
}

// Fetch downloads an archived report to destPath, creating parent
// directories. The returned report carries the stored metadata and the
// number of bytes written.
func (a *Archiver) Fetch(ctx context.Context, key, destPath string) (ArchivedReport, error) {
	stored, err := a.store.Describe(ctx, key)
	if err != nil {
		return ArchivedReport{}, err
	}
	reader, err := a.store.Download(ctx, key)
	if err != nil {
		return ArchivedReport{}, err
	}
	defer func() { _ = reader.Close() }()

	if dir := filepath.Dir(destPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ArchivedReport{}, fmt.Errorf("create %q: %w", dir, err)
		}
	}
	out, err := os.Create(destPath)
	if err != nil {
		return ArchivedReport{}, fmt.Errorf("create %q: %w", destPath, err)
	}
	written, err := io.Copy(out, reader)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return ArchivedReport{}, fmt.Errorf("write %q: %w", destPath, err)
	}
	stored.Size = written
	return stored, nil
}
