package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/wortschatz/internal/backup"
)

// mockCreator implements BackupCreator for testing.
type mockCreator struct {
	mu       sync.Mutex
	calls    int
	err      error
	duration time.Duration
}

func (m *mockCreator) CreateBackup(ctx context.Context, dir string) (*backup.Result, error) {
	m.mu.Lock()
	m.calls++
	duration := m.duration
	err := m.err
	m.mu.Unlock()

	if duration > 0 {
		time.Sleep(duration)
	}
	if err != nil {
		return nil, err
	}
	return &backup.Result{Path: "/backups/auto-backup.json", WrittenAt: time.Now().UTC()}, nil
}

func (m *mockCreator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockUploader implements snapshot.Uploader for testing.
type mockUploader struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (m *mockUploader) Upload(ctx context.Context, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, filePath)
	return m.err
}

func (m *mockUploader) PresignedURL(ctx context.Context) (string, time.Time, error) {
	return "", time.Time{}, nil
}

func (m *mockUploader) Uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.paths)
}

func startWorker(t *testing.T, w *BackupWorker) (cancel func()) {
	t.Helper()
	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	return func() {
		cancelCtx()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Worker did not stop on context cancellation")
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}

func TestBackupWorker_SubmitWritesBackup(t *testing.T) {
	creator := &mockCreator{}
	uploader := &mockUploader{}
	w := NewBackupWorker(creator, uploader, 0)
	stop := startWorker(t, w)
	defer stop()

	w.Submit("create_entry")

	waitFor(t, func() bool { return creator.Calls() == 1 })
	waitFor(t, func() bool { return uploader.Uploads() == 1 })
	if w.LastBackup() == nil {
		t.Error("LastBackup() should be set after a successful write")
	}
}

func TestBackupWorker_SubmitNeverBlocks(t *testing.T) {
	creator := &mockCreator{duration: 50 * time.Millisecond}
	w := NewBackupWorker(creator, nil, 0)
	stop := startWorker(t, w)
	defer stop()

	start := time.Now()
	for i := 0; i < 100; i++ {
		w.Submit("burst")
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("Submit blocked for %v", elapsed)
	}
}

func TestBackupWorker_CoalescesBurst(t *testing.T) {
	creator := &mockCreator{duration: 30 * time.Millisecond}
	w := NewBackupWorker(creator, nil, 0)
	stop := startWorker(t, w)

	for i := 0; i < 20; i++ {
		w.Submit("burst")
	}
	time.Sleep(150 * time.Millisecond)
	stop()

	// One in flight plus at most one pending
	if calls := creator.Calls(); calls < 1 || calls > 2 {
		t.Errorf("Expected 1-2 backups for a burst, got %d", calls)
	}
}

func TestBackupWorker_FailureIsSwallowed(t *testing.T) {
	creator := &mockCreator{err: errors.New("disk full")}
	uploader := &mockUploader{}
	w := NewBackupWorker(creator, uploader, 0)
	stop := startWorker(t, w)
	defer stop()

	w.Submit("first")
	waitFor(t, func() bool { return creator.Calls() == 1 })
	w.Submit("second")
	waitFor(t, func() bool { return creator.Calls() == 2 })

	if w.LastBackup() != nil {
		t.Error("LastBackup() should stay nil when every write fails")
	}
	if uploader.Uploads() != 0 {
		t.Error("nothing should be uploaded after a failed write")
	}
}

func TestBackupWorker_UploadFailureIsNotFatal(t *testing.T) {
	creator := &mockCreator{}
	uploader := &mockUploader{err: errors.New("bucket missing")}
	w := NewBackupWorker(creator, uploader, 0)

	result, err := w.BackupNow(context.Background())
	if err != nil {
		t.Fatalf("BackupNow() error = %v, want nil despite upload failure", err)
	}
	if result.Path == "" {
		t.Error("BackupNow() should return the written path")
	}
}

func TestBackupWorker_BackupNowReturnsError(t *testing.T) {
	creator := &mockCreator{err: errors.New("disk full")}
	w := NewBackupWorker(creator, nil, 0)

	if _, err := w.BackupNow(context.Background()); err == nil {
		t.Error("BackupNow() expected error, got nil")
	}
}

func TestBackupWorker_Interval(t *testing.T) {
	creator := &mockCreator{}
	w := NewBackupWorker(creator, nil, 40*time.Millisecond)
	stop := startWorker(t, w)

	time.Sleep(130 * time.Millisecond)
	stop()

	if calls := creator.Calls(); calls < 2 {
		t.Errorf("Expected at least 2 interval backups, got %d", calls)
	}
}

func TestBackupWorker_NoIntervalNoBackups(t *testing.T) {
	creator := &mockCreator{}
	w := NewBackupWorker(creator, nil, 0)
	stop := startWorker(t, w)

	time.Sleep(50 * time.Millisecond)
	stop()

	if calls := creator.Calls(); calls != 0 {
		t.Errorf("Expected no backups without submissions, got %d", calls)
	}
}

func TestBackupWorker_FlushesPendingOnShutdown(t *testing.T) {
	// Given: A request queued before the loop ever runs
	creator := &mockCreator{}
	w := NewBackupWorker(creator, nil, 0)
	w.Submit("late_mutation")

	// When: The worker starts with an already cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	// Then: The pending backup is still written
	if calls := creator.Calls(); calls != 1 {
		t.Errorf("Expected pending backup to be flushed, got %d calls", calls)
	}
}

// ctxCreator blocks until released and reports the context state it saw.
type ctxCreator struct {
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (c *ctxCreator) CreateBackup(ctx context.Context, dir string) (*backup.Result, error) {
	close(c.started)
	<-c.release
	c.ctxErr <- ctx.Err()
	return &backup.Result{Path: "/backups/auto-backup.json", WrittenAt: time.Now().UTC()}, nil
}

func TestBackupWorker_InProgressWriteSurvivesShutdown(t *testing.T) {
	creator := &ctxCreator{
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
	w := NewBackupWorker(creator, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// Given: A write in progress
	w.Submit("create")
	<-creator.started

	// When: Shutdown begins mid-write
	cancel()
	close(creator.release)
	<-done

	// Then: The write saw a live context and was recorded
	if err := <-creator.ctxErr; err != nil {
		t.Errorf("write context error = %v, want nil", err)
	}
	if w.LastBackup() == nil {
		t.Error("LastBackup() should be set after the in-progress write")
	}
}
