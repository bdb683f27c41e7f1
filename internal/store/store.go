package store

import (
	"context"

	"github.com/hyperengineering/wortschatz/internal/types"
)

// Store defines the interface contract for all vocabulary storage operations.
//
// Two insert operations exist on purpose: InsertOrFail surfaces ErrDuplicateEntry
// for the single-entry API path, InsertOrIgnore silently skips duplicates for
// bulk paths (seed import, lesson upload, restore).
type Store interface {
	EnsureSchema(ctx context.Context) error
	CountVocabulary(ctx context.Context) (int64, error)

	InsertOrFail(ctx context.Context, lesson string, pair types.Pair) (*types.VocabularyEntry, error)
	InsertOrIgnore(ctx context.Context, lesson string, pair types.Pair) (bool, error)
	RestoreEntry(ctx context.Context, entry types.VocabularyEntry) (bool, error)
	GetEntry(ctx context.Context, id int64) (*types.VocabularyEntry, error)
	ListEntries(ctx context.Context, lesson string) ([]types.VocabularyEntry, error)
	AllEntries(ctx context.Context) ([]types.VocabularyEntry, error)
	UpdateEntry(ctx context.Context, id int64, pair types.Pair) (*types.VocabularyEntry, error)
	DeleteEntry(ctx context.Context, id int64) error

	UpsertLesson(ctx context.Context, lesson types.Lesson) error
	EnsureLesson(ctx context.Context, slug string) error
	GetLesson(ctx context.Context, slug string) (*types.Lesson, error)
	ListLessons(ctx context.Context) ([]types.Lesson, error)
	NextLessonSlug(ctx context.Context) (string, error)

	GetStats(ctx context.Context) (*types.StoreStats, error)
	Close() error
}
