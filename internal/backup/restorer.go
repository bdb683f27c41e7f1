package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hyperengineering/wortschatz/internal/types"
	"github.com/hyperengineering/wortschatz/internal/validation"
)

// Target is the write side of the store a snapshot is restored into.
type Target interface {
	UpsertLesson(ctx context.Context, lesson types.Lesson) error
	RestoreEntry(ctx context.Context, entry types.VocabularyEntry) (bool, error)
}

// RestoreResult counts what Apply wrote.
type RestoreResult struct {
	LessonsRestored    int `json:"lessons_restored"`
	VocabularyInserted int `json:"vocabulary_inserted"`
	VocabularySkipped  int `json:"vocabulary_skipped"`
}

// Restorer repopulates a store from a snapshot.
type Restorer struct {
	target Target
}

// NewRestorer creates a Restorer writing into target.
func NewRestorer(target Target) *Restorer {
	return &Restorer{target: target}
}

// RestoreFromBackup applies the auto-backup in dir.
//
// Returns false without error when the file is missing or malformed; both
// mean "no backup available". Store errors while applying are returned.
func (r *Restorer) RestoreFromBackup(ctx context.Context, dir string) (bool, error) {
	path := SnapshotPath(dir)

	snap, err := LoadSnapshot(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("no auto-backup found",
				"component", "backup",
				"action", "restore_skipped",
				"path", path,
			)
			return false, nil
		}
		slog.Warn("auto-backup unusable, ignoring",
			"component", "backup",
			"action", "restore_invalid",
			"path", path,
			"error", err,
		)
		return false, nil
	}

	result, err := r.Apply(ctx, snap)
	if err != nil {
		return false, err
	}

	slog.Info("restored from auto-backup",
		"component", "backup",
		"action", "restored",
		"path", path,
		"backup_date", snap.BackupDate,
		"lessons", result.LessonsRestored,
		"inserted", result.VocabularyInserted,
		"skipped", result.VocabularySkipped,
	)

	return true, nil
}

// Apply upserts every lesson and inserts every entry with ignore-on-conflict
// semantics. Unpadded slugs are rewritten to canonical form. Lessons without
// a numbered slug are dropped; entries without one, or whose texts fail
// validation, are counted as skipped.
func (r *Restorer) Apply(ctx context.Context, snap *types.BackupSnapshot) (*RestoreResult, error) {
	result := &RestoreResult{}
	invalid := 0

	for _, lesson := range snap.Lessons {
		slug, ok := types.CanonicalLessonSlug(lesson.Slug)
		if !ok {
			invalid++
			continue
		}
		lesson.Slug = slug
		if err := r.target.UpsertLesson(ctx, lesson); err != nil {
			return result, fmt.Errorf("restore lesson %s: %w", lesson.Slug, err)
		}
		result.LessonsRestored++
	}

	for _, entry := range snap.Vocabulary {
		slug, ok := types.CanonicalLessonSlug(entry.Lesson)
		pair := types.Pair{SourceText: entry.SourceText, TargetText: entry.TargetText}
		if !ok || len(validation.ValidatePair(-1, pair)) > 0 {
			invalid++
			result.VocabularySkipped++
			continue
		}
		entry.Lesson = slug

		inserted, err := r.target.RestoreEntry(ctx, entry)
		if err != nil {
			return result, fmt.Errorf("restore entry %d: %w", entry.ID, err)
		}
		if inserted {
			result.VocabularyInserted++
		} else {
			result.VocabularySkipped++
		}
	}

	if invalid > 0 {
		slog.Warn("snapshot records failed validation",
			"component", "backup",
			"action", "restore_rejected",
			"count", invalid,
		)
	}

	return result, nil
}
