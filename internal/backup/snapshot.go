// Package backup writes and restores JSON snapshots of the vocabulary store.
//
// A snapshot holds every lesson and every vocabulary entry. The auto-backup
// lives at a fixed path, <backup dir>/auto-backup.json, and is overwritten
// on every write.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/wortschatz/internal/types"
)

// SnapshotFileName is the fixed file name of the auto-backup.
const SnapshotFileName = "auto-backup.json"

// ErrInvalidSnapshot is returned for documents that are not valid JSON or
// carry neither a lessons nor a vocabulary collection.
var ErrInvalidSnapshot = errors.New("invalid backup snapshot")

// legacyTimeLayout is the timestamp layout of snapshots written from
// databases that used CURRENT_TIMESTAMP defaults.
const legacyTimeLayout = "2006-01-02 15:04:05"

// snapshotDocument is the lenient on-disk shape. Pointers tell a missing
// collection apart from an empty one; timestamps are parsed by hand so a
// single odd value does not reject the whole document.
type snapshotDocument struct {
	BackupDate string              `json:"backupDate"`
	Version    string              `json:"version"`
	Type       string              `json:"type"`
	Lessons    *[]lessonRecord     `json:"lessons"`
	Vocabulary *[]entryRecord      `json:"vocabulary"`
	Stats      types.SnapshotStats `json:"stats"`
}

type lessonRecord struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	EntryCount  int    `json:"entry_count"`
	CreatedAt   string `json:"created_at"`
}

type entryRecord struct {
	ID         int64  `json:"id"`
	Lesson     string `json:"lesson"`
	SourceText string `json:"source_text"`
	TargetText string `json:"target_text"`
	CreatedAt  string `json:"created_at"`
}

// SnapshotPath returns the auto-backup path inside dir.
func SnapshotPath(dir string) string {
	return filepath.Join(dir, SnapshotFileName)
}

// ParseSnapshot decodes a snapshot document.
func ParseSnapshot(data []byte) (*types.BackupSnapshot, error) {
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if doc.Lessons == nil && doc.Vocabulary == nil {
		return nil, fmt.Errorf("%w: no lessons or vocabulary", ErrInvalidSnapshot)
	}

	snap := &types.BackupSnapshot{
		BackupDate: parseTimestamp(doc.BackupDate),
		Version:    doc.Version,
		Type:       types.SnapshotType(doc.Type),
		Lessons:    []types.Lesson{},
		Vocabulary: []types.VocabularyEntry{},
		Stats:      doc.Stats,
	}

	if doc.Lessons != nil {
		for _, l := range *doc.Lessons {
			snap.Lessons = append(snap.Lessons, types.Lesson{
				Slug:        l.Slug,
				Title:       l.Title,
				Description: l.Description,
				EntryCount:  l.EntryCount,
				CreatedAt:   parseTimestamp(l.CreatedAt),
			})
		}
	}
	if doc.Vocabulary != nil {
		for _, e := range *doc.Vocabulary {
			snap.Vocabulary = append(snap.Vocabulary, types.VocabularyEntry{
				ID:         e.ID,
				Lesson:     e.Lesson,
				SourceText: e.SourceText,
				TargetText: e.TargetText,
				CreatedAt:  parseTimestamp(e.CreatedAt),
			})
		}
	}

	return snap, nil
}

// LoadSnapshot reads and decodes the snapshot at path.
// A missing file yields an error satisfying errors.Is(err, os.ErrNotExist).
func LoadSnapshot(path string) (*types.BackupSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

// ResolveDir picks the backup directory: an explicit argument wins over
// the configured directory.
func ResolveDir(explicit, configured string) string {
	if explicit != "" {
		return explicit
	}
	return configured
}

// Info describes the auto-backup file in a directory.
type Info struct {
	Path     string
	Size     int64
	ModTime  time.Time
	Snapshot *types.BackupSnapshot
}

// Inspect stats and decodes the auto-backup in dir.
// Info.Snapshot is nil when the file exists but cannot be decoded; the
// decode error is returned alongside the partial Info.
func Inspect(dir string) (*Info, error) {
	path := SnapshotPath(dir)

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}

	info := &Info{Path: path, Size: fi.Size(), ModTime: fi.ModTime()}

	snap, err := LoadSnapshot(path)
	if err != nil {
		return info, err
	}
	info.Snapshot = snap

	return info, nil
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(legacyTimeLayout, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
