package types

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// MaxTextLength is the maximum length, in runes, of a source or target text.
const MaxTextLength = 60

// MaxLessonNumber is the highest lesson number the slug allocator hands out.
const MaxLessonNumber = 99

// lessonSlugPattern matches canonical lesson slugs (lesson01, lesson12, lesson104).
var lessonSlugPattern = regexp.MustCompile(`^lesson(\d{2,})$`)

// lessonNumberPattern extracts the numeric suffix of any lesson-like slug, padded or not.
var lessonNumberPattern = regexp.MustCompile(`^lesson(\d+)$`)

// VocabularyEntry is a single German-English pair belonging to a lesson.
type VocabularyEntry struct {
	ID         int64     `json:"id"`
	Lesson     string    `json:"lesson"`
	SourceText string    `json:"source_text"`
	TargetText string    `json:"target_text"`
	CreatedAt  time.Time `json:"created_at"`
}

// Pair is the input shape of a vocabulary entry: seed files, lesson uploads and API bodies.
type Pair struct {
	SourceText string `json:"source_text"`
	TargetText string `json:"target_text"`
}

// Lesson groups vocabulary entries under a slug.
type Lesson struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	EntryCount  int       `json:"entry_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// SnapshotType distinguishes automatic backups from on-demand exports.
type SnapshotType string

const (
	SnapshotAuto   SnapshotType = "auto"
	SnapshotManual SnapshotType = "manual"
)

// BackupSnapshot is the on-disk JSON document holding the full store state.
type BackupSnapshot struct {
	BackupDate time.Time         `json:"backupDate"`
	Version    string            `json:"version"`
	Type       SnapshotType      `json:"type"`
	Lessons    []Lesson          `json:"lessons"`
	Vocabulary []VocabularyEntry `json:"vocabulary"`
	Stats      SnapshotStats     `json:"stats"`
}

// SnapshotStats summarizes the contents of a snapshot.
type SnapshotStats struct {
	LessonsCount    int `json:"lessonsCount"`
	VocabularyCount int `json:"vocabularyCount"`
}

// StoreStats holds aggregate store statistics.
type StoreStats struct {
	VocabularyCount int64 `json:"vocabulary_count"`
	LessonCount     int64 `json:"lesson_count"`
}

// --- API payloads ---

// CreateEntryRequest is the body of POST /vocab/{lesson} and PUT /vocab/{lesson}/{id}.
type CreateEntryRequest struct {
	SourceText string `json:"source_text"`
	TargetText string `json:"target_text"`
}

// CreateLessonRequest is the JSON body of POST /lessons.
type CreateLessonRequest struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Pairs       []Pair `json:"pairs"`
}

// CreateLessonResponse reports the allocated lesson and how many pairs landed.
type CreateLessonResponse struct {
	Lesson   Lesson   `json:"lesson"`
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// ImportResponse reports the outcome of an admin snapshot import.
type ImportResponse struct {
	LessonsRestored    int `json:"lessons_restored"`
	VocabularyInserted int `json:"vocabulary_inserted"`
	VocabularySkipped  int `json:"vocabulary_skipped"`
}

// BackupResponse reports a synchronous backup write.
type BackupResponse struct {
	Path      string        `json:"path"`
	WrittenAt time.Time     `json:"written_at"`
	Stats     SnapshotStats `json:"stats"`
}

// BackupURLResponse carries a pre-signed download URL for the mirrored backup.
type BackupURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status          string     `json:"status"`
	Version         string     `json:"version"`
	VocabularyCount int64      `json:"vocabulary_count"`
	LessonCount     int64      `json:"lesson_count"`
	LastBackup      *time.Time `json:"last_backup"`
}

// --- Lesson slug helpers ---

// IsLessonSlug reports whether s is a canonical lesson slug ("lesson" + two or more digits).
func IsLessonSlug(s string) bool {
	return lessonSlugPattern.MatchString(s)
}

// LessonNumber returns the numeric suffix of a lesson slug.
// Unpadded slugs such as "lesson6" are accepted.
func LessonNumber(slug string) (int, bool) {
	m := lessonNumberPattern.FindStringSubmatch(slug)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// CanonicalLessonSlug rewrites a numbered slug into canonical form:
// "lesson6" → "lesson06". It reports false for slugs without a number.
func CanonicalLessonSlug(slug string) (string, bool) {
	n, ok := LessonNumber(slug)
	if !ok {
		return "", false
	}
	return LessonSlug(n), true
}

// LessonSlug formats a lesson number as a canonical slug: 4 → "lesson04".
func LessonSlug(n int) string {
	return fmt.Sprintf("lesson%02d", n)
}

// DefaultLessonTitle derives a title from a slug: "lesson6" → "Lesson 06".
// Slugs without a numeric suffix are returned unchanged.
func DefaultLessonTitle(slug string) string {
	n, ok := LessonNumber(slug)
	if !ok {
		return slug
	}
	return fmt.Sprintf("Lesson %02d", n)
}
