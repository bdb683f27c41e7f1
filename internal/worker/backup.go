package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hyperengineering/wortschatz/internal/backup"
	"github.com/hyperengineering/wortschatz/internal/snapshot"
)

// BackupCreator writes an auto-backup. An empty dir means the configured one.
type BackupCreator interface {
	CreateBackup(ctx context.Context, dir string) (*backup.Result, error)
}

// BackupWorker writes auto-backups in the background.
//
// Mutation handlers call Submit and return immediately. Requests that arrive
// while one is already pending collapse into it, and all writes run one at a
// time. A pending request is flushed on shutdown.
type BackupWorker struct {
	creator  BackupCreator
	uploader snapshot.Uploader
	interval time.Duration
	requests chan string

	writeMu sync.Mutex

	mu         sync.RWMutex
	lastBackup *time.Time
}

// NewBackupWorker creates a worker. A zero interval disables periodic backups.
// The uploader parameter is optional; if nil, no S3 upload is attempted.
func NewBackupWorker(creator BackupCreator, uploader snapshot.Uploader, interval time.Duration) *BackupWorker {
	return &BackupWorker{
		creator:  creator,
		uploader: uploader,
		interval: interval,
		requests: make(chan string, 1),
	}
}

// Submit queues a backup without blocking.
func (w *BackupWorker) Submit(reason string) {
	select {
	case w.requests <- reason:
	default:
		slog.Debug("backup already pending",
			"component", "worker",
			"worker", "backup",
			"action", "backup_coalesced",
			"reason", reason,
		)
	}
}

// LastBackup returns the time of the last successful write, or nil.
func (w *BackupWorker) LastBackup() *time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.lastBackup == nil {
		return nil
	}
	t := *w.lastBackup
	return &t
}

// Run starts the worker loop. Respects context cancellation for graceful shutdown.
func (w *BackupWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "backup",
		"action", "worker_started",
		"interval", w.interval.String(),
	)

	// A write in progress when ctx is cancelled runs to completion.
	writeCtx := context.WithoutCancel(ctx)

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			w.flush(writeCtx)
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "backup",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case reason := <-w.requests:
			w.runBackup(writeCtx, reason)
		case <-tick:
			w.runBackup(writeCtx, "interval")
		}
	}
}

// flush writes a backup if one is still pending.
func (w *BackupWorker) flush(ctx context.Context) {
	select {
	case reason := <-w.requests:
		w.runBackup(ctx, reason)
	default:
	}
}

// BackupNow writes a backup synchronously, serialized with background writes.
func (w *BackupWorker) BackupNow(ctx context.Context) (*backup.Result, error) {
	return w.write(ctx)
}

// runBackup writes a backup and logs any errors.
func (w *BackupWorker) runBackup(ctx context.Context, reason string) {
	result, err := w.write(ctx)
	if err != nil {
		slog.Warn("backup failed",
			"component", "worker",
			"worker", "backup",
			"action", "backup_failed",
			"reason", reason,
			"error", err,
		)
		return
	}

	slog.Info("backup written",
		"component", "worker",
		"worker", "backup",
		"action", "backup_written",
		"reason", reason,
		"path", result.Path,
		"vocabulary_count", result.Stats.VocabularyCount,
	)
}

func (w *BackupWorker) write(ctx context.Context) (*backup.Result, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	result, err := w.creator.CreateBackup(ctx, "")
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	written := result.WrittenAt
	w.lastBackup = &written
	w.mu.Unlock()

	if w.uploader != nil {
		w.upload(ctx, result.Path)
	}

	return result, nil
}

// upload mirrors the written backup to S3.
// Upload failures are logged as warnings but are NOT fatal; the local backup remains valid.
func (w *BackupWorker) upload(ctx context.Context, path string) {
	if err := w.uploader.Upload(ctx, path); err != nil {
		slog.Warn("backup upload to S3 failed",
			"component", "worker",
			"worker", "backup",
			"action", "backup_upload_failed",
			"error", err,
		)
		return
	}

	slog.Debug("backup uploaded to S3",
		"component", "worker",
		"worker", "backup",
		"action", "backup_uploaded",
	)
}
