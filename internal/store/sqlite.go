package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperengineering/wortschatz/internal/types"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is the on-disk timestamp format. All timestamps are stored in UTC.
const timeLayout = time.RFC3339

// legacyTimeLayout is what CURRENT_TIMESTAMP defaults produced in older databases.
const legacyTimeLayout = "2006-01-02 15:04:05"

// SQLiteStore represents the SQLite-backed vocabulary database.
// Each SQLiteStore owns one *sql.DB; callers open it at startup and Close it at shutdown.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database file and applies pragmas.
// It does not touch the schema; call EnsureSchema for that.
func Open(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every pooled connection to :memory: would otherwise see its own empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// NewSQLiteStore opens the database and ensures the schema in one step.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	s, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := s.EnsureSchema(context.Background()); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates tables and indexes if absent, removes duplicate
// vocabulary rows and adds the unique triple index to legacy tables.
//
// Migration failures are returned. Dedup and unique-index failures are logged
// and tolerated: the store keeps working, and inserts of dirty duplicates will
// fail loudly later.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if err := RunMigrations(ctx, s.db); err != nil {
		return err
	}

	removed, err := s.dedupeVocabulary(ctx)
	if err != nil {
		slog.Warn("vocabulary dedup failed",
			"component", "store",
			"action", "dedup_failed",
			"error", err,
		)
	} else if removed > 0 {
		slog.Info("removed duplicate vocabulary rows",
			"component", "store",
			"action", "dedup",
			"removed", removed,
		)
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_vocabulary_unique_triple
		ON vocabulary(lesson, source_text, target_text)
	`); err != nil {
		slog.Error("unique vocabulary index could not be created",
			"component", "store",
			"action", "unique_index_failed",
			"error", err,
		)
	}

	return nil
}

// dedupeVocabulary keeps the lowest id of every (lesson, source_text, target_text) group.
func (s *SQLiteStore) dedupeVocabulary(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM vocabulary
		WHERE id NOT IN (
			SELECT MIN(id) FROM vocabulary
			GROUP BY lesson, source_text, target_text
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("delete duplicates: %w", err)
	}
	return result.RowsAffected()
}

// CountVocabulary returns the number of vocabulary rows.
func (s *SQLiteStore) CountVocabulary(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vocabulary").Scan(&count); err != nil {
		return 0, fmt.Errorf("count vocabulary: %w", err)
	}
	return count, nil
}

// GetStats returns aggregate store statistics
func (s *SQLiteStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	var stats types.StoreStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM vocabulary),
			(SELECT COUNT(*) FROM lessons)
	`).Scan(&stats.VocabularyCount, &stats.LessonCount)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return &stats, nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(sqliteErr.Error(), "UNIQUE")
		}
		return false
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts RFC 3339 and the legacy CURRENT_TIMESTAMP layout.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(legacyTimeLayout, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
