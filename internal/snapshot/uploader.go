// Package snapshot mirrors auto-backup files to S3-compatible storage and
// generates pre-signed download URLs for them. When S3 is not configured
// (empty bucket), the NoopUploader is used and all S3 operations are skipped,
// keeping the local backup file authoritative.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sethvargo/go-retry"

	"github.com/hyperengineering/wortschatz/internal/config"
)

// ErrNotConfigured is returned when S3 snapshot storage is not configured.
var ErrNotConfigured = errors.New("snapshot storage not configured")

// objectName is the fixed file name of the mirrored backup.
const objectName = "auto-backup.json"

// Uploader mirrors backup files and generates pre-signed download URLs.
type Uploader interface {
	// Upload uploads the backup file at filePath, replacing the previous object.
	Upload(ctx context.Context, filePath string) error

	// PresignedURL returns a pre-signed URL for downloading the mirrored backup.
	// Returns ErrNotConfigured when S3 is not configured.
	PresignedURL(ctx context.Context) (url string, expiry time.Time, err error)
}

// s3Client defines the minimal minio.Client operations used by S3Uploader.
type s3Client interface {
	FPutObject(ctx context.Context, bucket, objectName, filePath string) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
}

// minioClientWrapper wraps *minio.Client to satisfy the s3Client interface.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) FPutObject(ctx context.Context, bucket, objectName, filePath string) error {
	putOpts := minio.PutObjectOptions{
		ContentType: "application/json",
	}
	_, err := w.client.FPutObject(ctx, bucket, objectName, filePath, putOpts)
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

// S3Uploader uploads backups to S3-compatible storage.
type S3Uploader struct {
	client    s3Client
	bucket    string
	key       string
	urlExpiry time.Duration
	attempts  uint64
	backoff   time.Duration
}

// Upload uploads the backup file, retrying with exponential backoff.
func (u *S3Uploader) Upload(ctx context.Context, filePath string) error {
	base := u.backoff
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	b := retry.WithMaxRetries(u.retries(), retry.NewExponential(base))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := u.client.FPutObject(ctx, u.bucket, u.key, filePath); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upload backup to S3: %w", err)
	}
	return nil
}

// retries converts the configured attempt count into retries after the first try.
func (u *S3Uploader) retries() uint64 {
	if u.attempts <= 1 {
		return 0
	}
	return u.attempts - 1
}

// PresignedURL returns a pre-signed GET URL for the mirrored backup.
func (u *S3Uploader) PresignedURL(ctx context.Context) (string, time.Time, error) {
	presigned, err := u.client.PresignedGetObject(ctx, u.bucket, u.key, u.urlExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	expiry := time.Now().Add(u.urlExpiry)
	return presigned.String(), expiry, nil
}

// NoopUploader is used when S3 storage is not configured.
// Upload is a no-op and PresignedURL returns ErrNotConfigured.
type NoopUploader struct{}

// Upload is a no-op when S3 is not configured.
func (u *NoopUploader) Upload(ctx context.Context, filePath string) error {
	return nil
}

// PresignedURL returns ErrNotConfigured when S3 is not configured.
func (u *NoopUploader) PresignedURL(ctx context.Context) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// NewUploader creates the appropriate Uploader based on configuration.
// Returns NoopUploader when bucket is empty, S3Uploader otherwise.
func NewUploader(cfg config.SnapshotStorageConfig) (Uploader, error) {
	if cfg.Bucket == "" {
		return &NoopUploader{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}
	endpoint := stripScheme(cfg.Endpoint, &useSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	attempts := uint64(1)
	if cfg.UploadAttempts > 1 {
		attempts = uint64(cfg.UploadAttempts)
	}

	return &S3Uploader{
		client:    &minioClientWrapper{client: client},
		bucket:    cfg.Bucket,
		key:       objectKey(cfg.Prefix),
		urlExpiry: time.Duration(cfg.URLExpiry),
		attempts:  attempts,
		backoff:   500 * time.Millisecond,
	}, nil
}

// stripScheme removes an http:// or https:// prefix from endpoint.
// An explicit scheme overrides useSSL.
func stripScheme(endpoint string, useSSL *bool) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		*useSSL = true
		return strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		*useSSL = false
		return strings.TrimPrefix(endpoint, "http://")
	}
	return endpoint
}

// objectKey returns the S3 object key for the mirrored backup.
// Convention: {prefix}/auto-backup.json
func objectKey(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return objectName
	}
	return path.Join(prefix, objectName)
}
