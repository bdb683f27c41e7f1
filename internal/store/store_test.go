package store

import (
	"context"

	"github.com/hyperengineering/wortschatz/internal/types"
)

// mockStore is a compile-time check that the Store interface can be implemented.
type mockStore struct{}

var _ Store = (*mockStore)(nil)
var _ Store = (*SQLiteStore)(nil)

func (m *mockStore) EnsureSchema(ctx context.Context) error { return nil }
func (m *mockStore) CountVocabulary(ctx context.Context) (int64, error) {
	return 0, nil
}
func (m *mockStore) InsertOrFail(ctx context.Context, lesson string, pair types.Pair) (*types.VocabularyEntry, error) {
	return nil, nil
}
func (m *mockStore) InsertOrIgnore(ctx context.Context, lesson string, pair types.Pair) (bool, error) {
	return false, nil
}
func (m *mockStore) RestoreEntry(ctx context.Context, entry types.VocabularyEntry) (bool, error) {
	return false, nil
}
func (m *mockStore) GetEntry(ctx context.Context, id int64) (*types.VocabularyEntry, error) {
	return nil, nil
}
func (m *mockStore) ListEntries(ctx context.Context, lesson string) ([]types.VocabularyEntry, error) {
	return nil, nil
}
func (m *mockStore) AllEntries(ctx context.Context) ([]types.VocabularyEntry, error) {
	return nil, nil
}
func (m *mockStore) UpdateEntry(ctx context.Context, id int64, pair types.Pair) (*types.VocabularyEntry, error) {
	return nil, nil
}
func (m *mockStore) DeleteEntry(ctx context.Context, id int64) error { return nil }
func (m *mockStore) UpsertLesson(ctx context.Context, lesson types.Lesson) error {
	return nil
}
func (m *mockStore) EnsureLesson(ctx context.Context, slug string) error { return nil }
func (m *mockStore) GetLesson(ctx context.Context, slug string) (*types.Lesson, error) {
	return nil, nil
}
func (m *mockStore) ListLessons(ctx context.Context) ([]types.Lesson, error) {
	return nil, nil
}
func (m *mockStore) NextLessonSlug(ctx context.Context) (string, error) { return "", nil }
func (m *mockStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	return nil, nil
}
func (m *mockStore) Close() error { return nil }
