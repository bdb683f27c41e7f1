package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/wortschatz/internal/types"
)

// Source is the read side of the store a snapshot is built from.
type Source interface {
	ListLessons(ctx context.Context) ([]types.Lesson, error)
	AllEntries(ctx context.Context) ([]types.VocabularyEntry, error)
}

// Result describes a written auto-backup.
type Result struct {
	Path      string
	WrittenAt time.Time
	Stats     types.SnapshotStats
}

// Writer serializes the full store into a snapshot file.
type Writer struct {
	source  Source
	dir     string
	version string
	now     func() time.Time
}

// NewWriter creates a Writer that writes into dir unless CreateBackup is
// given an explicit directory.
func NewWriter(source Source, dir, version string) *Writer {
	return &Writer{
		source:  source,
		dir:     dir,
		version: version,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Dir returns the configured backup directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Build reads all lessons (by slug) and all vocabulary (by lesson, then id)
// into an in-memory snapshot.
func (w *Writer) Build(ctx context.Context, snapType types.SnapshotType) (*types.BackupSnapshot, error) {
	lessons, err := w.source.ListLessons(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}

	entries, err := w.source.AllEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vocabulary: %w", err)
	}

	return &types.BackupSnapshot{
		BackupDate: w.now(),
		Version:    w.version,
		Type:       snapType,
		Lessons:    lessons,
		Vocabulary: entries,
		Stats: types.SnapshotStats{
			LessonsCount:    len(lessons),
			VocabularyCount: len(entries),
		},
	}, nil
}

// CreateBackup writes an auto snapshot to dir, or to the configured
// directory when dir is empty. The previous file is replaced atomically.
func (w *Writer) CreateBackup(ctx context.Context, dir string) (*Result, error) {
	dir = ResolveDir(dir, w.dir)

	snap, err := w.Build(ctx, types.SnapshotAuto)
	if err != nil {
		return nil, err
	}

	path := SnapshotPath(dir)
	if err := writeSnapshotFile(path, snap); err != nil {
		return nil, err
	}

	return &Result{Path: path, WrittenAt: snap.BackupDate, Stats: snap.Stats}, nil
}

// writeSnapshotFile writes snap to a temp file next to path and renames it
// into place so readers never observe a partial document.
func writeSnapshotFile(path string, snap *types.BackupSnapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".auto-backup-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	// No-op after a successful rename
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	return nil
}
