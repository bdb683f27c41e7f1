package snapshot

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperengineering/wortschatz/internal/config"
)

// --- NoopUploader Tests ---

func TestNoopUploader_Upload_IsNoOp(t *testing.T) {
	u := &NoopUploader{}
	err := u.Upload(context.Background(), "/some/path")
	if err != nil {
		t.Errorf("NoopUploader.Upload() should not error, got %v", err)
	}
}

func TestNoopUploader_PresignedURL_ReturnsErrNotConfigured(t *testing.T) {
	u := &NoopUploader{}
	_, _, err := u.PresignedURL(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("NoopUploader.PresignedURL() should return ErrNotConfigured, got %v", err)
	}
}

// --- NewUploader factory tests ---

func TestNewUploader_EmptyBucket_ReturnsNoopUploader(t *testing.T) {
	cfg := config.SnapshotStorageConfig{
		Bucket: "", // Empty = not configured
	}

	u, err := NewUploader(cfg)
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}

	if _, ok := u.(*NoopUploader); !ok {
		t.Errorf("expected *NoopUploader, got %T", u)
	}
}

func TestNewUploader_WithBucket_ReturnsS3Uploader(t *testing.T) {
	boolTrue := true
	cfg := config.SnapshotStorageConfig{
		Bucket:         "test-bucket",
		Endpoint:       "localhost:9000",
		Region:         "us-east-1",
		Prefix:         "wortschatz",
		UseSSL:         &boolTrue,
		AccessKey:      "minioadmin",
		SecretKey:      "minioadmin",
		URLExpiry:      config.Duration(15 * time.Minute),
		UploadAttempts: 4,
	}

	u, err := NewUploader(cfg)
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}

	s3u, ok := u.(*S3Uploader)
	if !ok {
		t.Fatalf("expected *S3Uploader, got %T", u)
	}
	if s3u.bucket != "test-bucket" {
		t.Errorf("bucket = %q, want %q", s3u.bucket, "test-bucket")
	}
	if s3u.key != "wortschatz/auto-backup.json" {
		t.Errorf("key = %q, want %q", s3u.key, "wortschatz/auto-backup.json")
	}
	if s3u.attempts != 4 {
		t.Errorf("attempts = %d, want 4", s3u.attempts)
	}
}

func TestNewUploader_ZeroAttempts_TriesOnce(t *testing.T) {
	cfg := config.SnapshotStorageConfig{
		Bucket:   "test-bucket",
		Endpoint: "http://localhost:9000",
	}

	u, err := NewUploader(cfg)
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}

	s3u := u.(*S3Uploader)
	if s3u.attempts != 1 {
		t.Errorf("attempts = %d, want 1", s3u.attempts)
	}
}

// --- S3Uploader with mock client tests ---

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	uploadCalls    int
	failUploads    int
	uploadErr      error
	presignCalled  bool
	presignErr     error
	lastBucket     string
	lastObjectName string
	lastFilePath   string
}

func (m *mockS3Client) FPutObject(ctx context.Context, bucket, objectName, filePath string) error {
	m.uploadCalls++
	m.lastBucket = bucket
	m.lastObjectName = objectName
	m.lastFilePath = filePath
	if m.uploadCalls <= m.failUploads {
		return m.uploadErr
	}
	return nil
}

func (m *mockS3Client) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	m.presignCalled = true
	m.lastBucket = bucket
	m.lastObjectName = objectName
	if m.presignErr != nil {
		return nil, m.presignErr
	}
	return url.Parse("https://s3.example.com/" + bucket + "/" + objectName + "?presigned=true")
}

func newTestUploader(mock *mockS3Client, attempts uint64) *S3Uploader {
	return &S3Uploader{
		client:    mock,
		bucket:    "test-bucket",
		key:       objectKey("wortschatz"),
		urlExpiry: 15 * time.Minute,
		attempts:  attempts,
		backoff:   time.Millisecond,
	}
}

func TestS3Uploader_Upload_Success(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "auto-backup.json")
	if err := os.WriteFile(filePath, []byte(`{"lessons":[]}`), 0644); err != nil {
		t.Fatal(err)
	}

	mock := &mockS3Client{}
	u := newTestUploader(mock, 3)

	if err := u.Upload(context.Background(), filePath); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if mock.uploadCalls != 1 {
		t.Errorf("uploadCalls = %d, want 1", mock.uploadCalls)
	}
	if mock.lastBucket != "test-bucket" {
		t.Errorf("bucket = %q, want %q", mock.lastBucket, "test-bucket")
	}
	if mock.lastObjectName != "wortschatz/auto-backup.json" {
		t.Errorf("objectName = %q, want %q", mock.lastObjectName, "wortschatz/auto-backup.json")
	}
	if mock.lastFilePath != filePath {
		t.Errorf("filePath = %q, want %q", mock.lastFilePath, filePath)
	}
}

func TestS3Uploader_Upload_RetriesTransientFailure(t *testing.T) {
	mock := &mockS3Client{failUploads: 2, uploadErr: errors.New("connection reset")}
	u := newTestUploader(mock, 3)

	if err := u.Upload(context.Background(), "/tmp/auto-backup.json"); err != nil {
		t.Fatalf("Upload() error = %v, want success on third attempt", err)
	}
	if mock.uploadCalls != 3 {
		t.Errorf("uploadCalls = %d, want 3", mock.uploadCalls)
	}
}

func TestS3Uploader_Upload_GivesUpAfterAttempts(t *testing.T) {
	mock := &mockS3Client{failUploads: 10, uploadErr: errors.New("access denied")}
	u := newTestUploader(mock, 2)

	err := u.Upload(context.Background(), "/tmp/auto-backup.json")
	if err == nil {
		t.Fatal("Upload() expected error, got nil")
	}
	if !errors.Is(err, mock.uploadErr) {
		t.Errorf("Upload() error = %v, want wrapped %v", err, mock.uploadErr)
	}
	if mock.uploadCalls != 2 {
		t.Errorf("uploadCalls = %d, want 2", mock.uploadCalls)
	}
}

func TestS3Uploader_PresignedURL_Success(t *testing.T) {
	mock := &mockS3Client{}
	u := newTestUploader(mock, 1)

	before := time.Now()
	rawURL, expiry, err := u.PresignedURL(context.Background())
	if err != nil {
		t.Fatalf("PresignedURL() error = %v", err)
	}

	if rawURL == "" {
		t.Error("PresignedURL() returned empty URL")
	}
	if expiry.Before(before.Add(14 * time.Minute)) {
		t.Errorf("expiry = %v, want about 15 minutes from now", expiry)
	}
	if !mock.presignCalled {
		t.Error("PresignedGetObject was not called")
	}
	if mock.lastObjectName != "wortschatz/auto-backup.json" {
		t.Errorf("objectName = %q, want %q", mock.lastObjectName, "wortschatz/auto-backup.json")
	}
}

func TestS3Uploader_PresignedURL_Error(t *testing.T) {
	mock := &mockS3Client{presignErr: errors.New("signing failed")}
	u := newTestUploader(mock, 1)

	_, _, err := u.PresignedURL(context.Background())
	if !errors.Is(err, mock.presignErr) {
		t.Errorf("PresignedURL() error = %v, want wrapped %v", err, mock.presignErr)
	}
}

func TestStripScheme(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantHost string
		wantSSL  bool
	}{
		{"bare host", "s3.example.com", "s3.example.com", true},
		{"bare host:port", "minio:9000", "minio:9000", true},
		{"https URL", "https://s3.example.com", "s3.example.com", true},
		{"http URL", "http://minio:9000", "minio:9000", false},
		{"https with port", "https://s3.example.com:443", "s3.example.com:443", true},
		{"http with port", "http://localhost:9000", "localhost:9000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ssl := true
			got := stripScheme(tt.endpoint, &ssl)
			if got != tt.wantHost {
				t.Errorf("stripScheme(%q) host = %q, want %q", tt.endpoint, got, tt.wantHost)
			}
			if ssl != tt.wantSSL {
				t.Errorf("stripScheme(%q) ssl = %v, want %v", tt.endpoint, ssl, tt.wantSSL)
			}
		})
	}
}

func TestObjectKey_Format(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "auto-backup.json"},
		{"wortschatz", "wortschatz/auto-backup.json"},
		{"/prod/wortschatz/", "prod/wortschatz/auto-backup.json"},
	}

	for _, tt := range tests {
		if got := objectKey(tt.prefix); got != tt.want {
			t.Errorf("objectKey(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}
