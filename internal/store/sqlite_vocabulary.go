package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/wortschatz/internal/types"
)

const entryColumns = "id, lesson, source_text, target_text, created_at"

// scanEntry scans a row into a VocabularyEntry.
func scanEntry(scanner interface{ Scan(...any) error }) (*types.VocabularyEntry, error) {
	var entry types.VocabularyEntry
	var createdAt string

	if err := scanner.Scan(&entry.ID, &entry.Lesson, &entry.SourceText, &entry.TargetText, &createdAt); err != nil {
		return nil, err
	}
	entry.CreatedAt = parseTime(createdAt)

	return &entry, nil
}

// InsertOrFail inserts a single entry and returns ErrDuplicateEntry when the
// (lesson, source_text, target_text) triple already exists.
func (s *SQLiteStore) InsertOrFail(ctx context.Context, lesson string, pair types.Pair) (*types.VocabularyEntry, error) {
	now := s.now()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO vocabulary (lesson, source_text, target_text, created_at)
		VALUES (?, ?, ?, ?)
	`, lesson, pair.SourceText, pair.TargetText, formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEntry
		}
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get inserted id: %w", err)
	}

	return &types.VocabularyEntry{
		ID:         id,
		Lesson:     lesson,
		SourceText: pair.SourceText,
		TargetText: pair.TargetText,
		CreatedAt:  now.Truncate(time.Second),
	}, nil
}

// InsertOrIgnore inserts a single entry; an existing triple is a silent no-op.
// Returns true when a row was actually inserted.
func (s *SQLiteStore) InsertOrIgnore(ctx context.Context, lesson string, pair types.Pair) (bool, error) {
	return s.insertOrIgnore(ctx, lesson, pair, s.now())
}

func (s *SQLiteStore) insertOrIgnore(ctx context.Context, lesson string, pair types.Pair, createdAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO vocabulary (lesson, source_text, target_text, created_at)
		VALUES (?, ?, ?, ?)
	`, lesson, pair.SourceText, pair.TargetText, formatTime(createdAt))
	if err != nil {
		return false, fmt.Errorf("insert entry: %w", err)
	}
	return rowsChanged(result)
}

// RestoreEntry inserts a full entry with ignore-on-conflict semantics.
// The original id and created_at are kept when the id is still free; if the id
// is taken by a different row the entry is inserted under a fresh id, unless
// its triple already exists.
func (s *SQLiteStore) RestoreEntry(ctx context.Context, entry types.VocabularyEntry) (bool, error) {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	pair := types.Pair{SourceText: entry.SourceText, TargetText: entry.TargetText}

	if entry.ID <= 0 {
		return s.insertOrIgnore(ctx, entry.Lesson, pair, createdAt)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO vocabulary (id, lesson, source_text, target_text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ID, entry.Lesson, pair.SourceText, pair.TargetText, formatTime(createdAt))
	if err != nil {
		return false, fmt.Errorf("restore entry: %w", err)
	}

	inserted, err := rowsChanged(result)
	if err != nil || inserted {
		return inserted, err
	}

	return s.insertOrIgnore(ctx, entry.Lesson, pair, createdAt)
}

// GetEntry retrieves a vocabulary entry by id.
func (s *SQLiteStore) GetEntry(ctx context.Context, id int64) (*types.VocabularyEntry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM vocabulary WHERE id = ?", id)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}

	return entry, nil
}

// ListEntries returns the entries of a lesson, oldest first.
func (s *SQLiteStore) ListEntries(ctx context.Context, lesson string) ([]types.VocabularyEntry, error) {
	return s.queryEntries(ctx,
		"SELECT "+entryColumns+" FROM vocabulary WHERE lesson = ? ORDER BY created_at ASC, id ASC",
		lesson,
	)
}

// AllEntries returns every entry ordered by lesson, then id.
func (s *SQLiteStore) AllEntries(ctx context.Context) ([]types.VocabularyEntry, error) {
	return s.queryEntries(ctx, "SELECT "+entryColumns+" FROM vocabulary ORDER BY lesson ASC, id ASC")
}

func (s *SQLiteStore) queryEntries(ctx context.Context, query string, args ...any) ([]types.VocabularyEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vocabulary: %w", err)
	}
	defer rows.Close()

	entries := []types.VocabularyEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}

// UpdateEntry replaces the texts of an entry.
// Returns ErrNotFound for an unknown id and ErrDuplicateEntry when the new
// texts collide with another entry of the same lesson.
func (s *SQLiteStore) UpdateEntry(ctx context.Context, id int64, pair types.Pair) (*types.VocabularyEntry, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE vocabulary SET source_text = ?, target_text = ? WHERE id = ?
	`, pair.SourceText, pair.TargetText, id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEntry
		}
		return nil, fmt.Errorf("update entry: %w", err)
	}

	changed, err := rowsChanged(result)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, ErrNotFound
	}

	return s.GetEntry(ctx, id)
}

// DeleteEntry removes an entry by id.
func (s *SQLiteStore) DeleteEntry(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM vocabulary WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	changed, err := rowsChanged(result)
	if err != nil {
		return err
	}
	if !changed {
		return ErrNotFound
	}

	return nil
}

func rowsChanged(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return n > 0, nil
}
