// Package s3 keeps archived reports in an S3-compatible bucket. Run id,
// variant, model and file name travel as object user metadata.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sqlcopilot/sqlcopilot/internal/config"
	"github.com/sqlcopilot/sqlcopilot/internal/storage"
)

// User metadata keys in the canonical form minio returns them in.
const (
	metaRunID    = "Run-Id"
	metaVariant  = "Variant"
	metaModel    = "Model"
	metaFileName = "File-Name"
)

// bucketAPI is the subset of *minio.Client the store uses.
type bucketAPI interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
}

type openFunc func(ctx context.Context, bucket, object string) (io.ReadCloser, error)

type Store struct {
	api    bucketAPI
	open   openFunc
	bucket string
	prefix string
}

var _ storage.ReportStore = (*Store)(nil)

func New(ctx context.Context, cfg config.ObjectStoreConfig) (*Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	host, secure, err := endpointHost(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	mc, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	store := newStore(mc, openWith(mc), bucket, cfg.Prefix)
	if cfg.AutoCreateBucket {
		if err := store.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func newStore(api bucketAPI, open openFunc, bucket, prefix string) *Store {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix != "" {
		prefix = path.Clean(prefix)
	}
	return &Store{api: api, open: open, bucket: bucket, prefix: prefix}
}

// openWith downloads through GetObject. The stat call surfaces a missing
// object before the caller starts copying.
func openWith(mc *minio.Client) openFunc {
	return func(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
		obj, err := mc.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		if _, err := obj.Stat(); err != nil {
			_ = obj.Close()
			return nil, err
		}
		return obj, nil
	}
}

func (s *Store) Upload(ctx context.Context, key string, body io.Reader, size int64, meta storage.ReportMeta) (storage.ArchivedReport, error) {
	reportKey, object, err := s.objectName(key)
	if err != nil {
		return storage.ArchivedReport{}, err
	}
	if meta.RunID != reportKey.RunID {
		return storage.ArchivedReport{}, fmt.Errorf("report key %q does not belong to run %s", key, meta.RunID)
	}
	if meta.FileName == "" {
		meta.FileName = reportKey.FileName
	}
	contentType := storage.ContentType(reportKey.FileName)

	info, err := s.api.PutObject(ctx, s.bucket, object, body, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			metaRunID:    meta.RunID.String(),
			metaVariant:  meta.Variant,
			metaModel:    meta.Model,
			metaFileName: meta.FileName,
		},
	})
	if err != nil {
		return storage.ArchivedReport{}, s.wrap("upload", key, err)
	}
	return storage.ArchivedReport{
		Key:         reportKey.String(),
		Size:        info.Size,
		ETag:        info.ETag,
		ContentType: contentType,
		ArchivedAt:  info.LastModified,
		Meta:        meta,
	}, nil
}

// Describe reads the stored size and metadata. Objects written without
// metadata fall back to what the key itself encodes.
func (s *Store) Describe(ctx context.Context, key string) (storage.ArchivedReport, error) {
	reportKey, object, err := s.objectName(key)
	if err != nil {
		return storage.ArchivedReport{}, err
	}
	info, err := s.api.StatObject(ctx, s.bucket, object, minio.StatObjectOptions{})
	if err != nil {
		return storage.ArchivedReport{}, s.wrap("describe", key, err)
	}

	meta := storage.ReportMeta{
		RunID:    reportKey.RunID,
		Variant:  userMeta(info.UserMetadata, metaVariant),
		Model:    userMeta(info.UserMetadata, metaModel),
		FileName: userMeta(info.UserMetadata, metaFileName),
	}
	if raw := userMeta(info.UserMetadata, metaRunID); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return storage.ArchivedReport{}, fmt.Errorf("report %q has invalid run id metadata %q", key, raw)
		}
		meta.RunID = parsed
	}
	if meta.FileName == "" {
		meta.FileName = reportKey.FileName
	}
	return storage.ArchivedReport{
		Key:         reportKey.String(),
		Size:        info.Size,
		ETag:        info.ETag,
		ContentType: info.ContentType,
		ArchivedAt:  info.LastModified,
		Meta:        meta,
	}, nil
}

func (s *Store) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	_, object, err := s.objectName(key)
	if err != nil {
		return nil, err
	}
	reader, err := s.open(ctx, s.bucket, object)
	if err != nil {
		return nil, s.wrap("download", key, err)
	}
	return reader, nil
}

// Remove is idempotent: a report that is already gone is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	_, object, err := s.objectName(key)
	if err != nil {
		return err
	}
	if err := s.api.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{}); err != nil {
		if wrapped := s.wrap("remove", key, err); !errors.Is(wrapped, storage.ErrReportNotFound) {
			return wrapped
		}
	}
	return nil
}

func (s *Store) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	return nil
}

// objectName validates a report key and places it under the store prefix.
func (s *Store) objectName(key string) (storage.ReportKey, string, error) {
	reportKey, err := storage.ParseReportKey(key)
	if err != nil {
		return storage.ReportKey{}, "", err
	}
	if s.prefix == "" {
		return reportKey, reportKey.String(), nil
	}
	return reportKey, path.Join(s.prefix, reportKey.String()), nil
}

func (s *Store) wrap(op, key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%s %q: %w", op, key, storage.ErrReportNotFound)
	case "NoSuchBucket":
		return fmt.Errorf("%s %q: bucket %q does not exist", op, key, s.bucket)
	}
	if errors.Is(err, storage.ErrReportNotFound) {
		return fmt.Errorf("%s %q: %w", op, key, storage.ErrReportNotFound)
	}
	return fmt.Errorf("%s report %q: %w", op, key, err)
}

func userMeta(values minio.StringMap, key string) string {
	for k, v := range values {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// endpointHost accepts either host[:port] or a URL; an https URL forces TLS.
func endpointHost(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("s3 endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse s3 endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("s3 endpoint %q has no host", raw)
	}
	return parsed.Host, useSSL || parsed.Scheme == "https", nil
}
