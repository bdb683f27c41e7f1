package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperengineering/wortschatz/internal/types"
)

// lessonSelect reads lessons with a live entry count. The stored entry_count
// column is only written for snapshot compatibility and never read back.
const lessonSelect = `
	SELECT l.slug, l.title, COALESCE(l.description, ''),
	       (SELECT COUNT(*) FROM vocabulary v WHERE v.lesson = l.slug),
	       l.created_at
	FROM lessons l`

func scanLesson(scanner interface{ Scan(...any) error }) (*types.Lesson, error) {
	var lesson types.Lesson
	var createdAt string

	if err := scanner.Scan(&lesson.Slug, &lesson.Title, &lesson.Description, &lesson.EntryCount, &createdAt); err != nil {
		return nil, err
	}
	lesson.CreatedAt = parseTime(createdAt)

	return &lesson, nil
}

// UpsertLesson inserts a lesson or replaces the existing row with the same slug.
// An empty title is derived from the slug; a zero CreatedAt becomes now.
func (s *SQLiteStore) UpsertLesson(ctx context.Context, lesson types.Lesson) error {
	if lesson.Title == "" {
		lesson.Title = types.DefaultLessonTitle(lesson.Slug)
	}
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = s.now()
	}

	var description sql.NullString
	if lesson.Description != "" {
		description = sql.NullString{String: lesson.Description, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO lessons (slug, title, description, entry_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, lesson.Slug, lesson.Title, description, lesson.EntryCount, formatTime(lesson.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert lesson: %w", err)
	}

	return nil
}

// EnsureLesson creates a lesson row with a derived title if none exists yet.
func (s *SQLiteStore) EnsureLesson(ctx context.Context, slug string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO lessons (slug, title, entry_count, created_at)
		VALUES (?, ?, 0, ?)
	`, slug, types.DefaultLessonTitle(slug), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("ensure lesson: %w", err)
	}
	return nil
}

// GetLesson retrieves a lesson by slug.
func (s *SQLiteStore) GetLesson(ctx context.Context, slug string) (*types.Lesson, error) {
	row := s.db.QueryRowContext(ctx, lessonSelect+" WHERE l.slug = ?", slug)

	lesson, err := scanLesson(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}

	return lesson, nil
}

// ListLessons returns all lessons ordered by slug.
func (s *SQLiteStore) ListLessons(ctx context.Context) ([]types.Lesson, error) {
	rows, err := s.db.QueryContext(ctx, lessonSelect+" ORDER BY l.slug ASC")
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer rows.Close()

	lessons := []types.Lesson{}
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		lessons = append(lessons, *lesson)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return lessons, nil
}

// NextLessonSlug returns the slug after the highest two-digit lesson known to
// either table. Slugs numbered past lesson99 are ignored. Returns
// ErrLessonLimit once lesson99 is taken.
func (s *SQLiteStore) NextLessonSlug(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slug FROM lessons
		UNION
		SELECT DISTINCT lesson FROM vocabulary
	`)
	if err != nil {
		return "", fmt.Errorf("query lesson slugs: %w", err)
	}
	defer rows.Close()

	highest := 0
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return "", fmt.Errorf("scan row: %w", err)
		}
		n, ok := types.LessonNumber(slug)
		if ok && n <= types.MaxLessonNumber && n > highest {
			highest = n
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate rows: %w", err)
	}

	next := highest + 1
	if next > types.MaxLessonNumber {
		return "", ErrLessonLimit
	}

	return types.LessonSlug(next), nil
}
