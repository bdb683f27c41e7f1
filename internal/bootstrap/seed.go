package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hyperengineering/wortschatz/internal/types"
	"github.com/hyperengineering/wortschatz/internal/validation"
)

// SeedTarget is the store surface the seed importer writes to.
type SeedTarget interface {
	InsertOrIgnore(ctx context.Context, lesson string, pair types.Pair) (bool, error)
	UpsertLesson(ctx context.Context, lesson types.Lesson) error
}

// SeedReport summarizes one import pass.
type SeedReport struct {
	LessonsImported int `json:"lessons_imported"`
	EntriesInserted int `json:"entries_inserted"`
	FilesSkipped    int `json:"files_skipped"`
}

// SeedImporter loads per-lesson JSON files of {source_text, target_text} pairs.
type SeedImporter struct {
	target SeedTarget
}

// NewSeedImporter creates a SeedImporter writing into target.
func NewSeedImporter(target SeedTarget) *SeedImporter {
	return &SeedImporter{target: target}
}

// Import loads each lesson in order from the first search path holding a
// matching file. Missing and malformed files skip that lesson only; store
// errors abort the import.
func (si *SeedImporter) Import(ctx context.Context, lessonSlugs, searchPaths []string) (SeedReport, error) {
	var report SeedReport

	for _, slug := range lessonSlugs {
		path, ok := findSeedFile(slug, searchPaths)
		if !ok {
			slog.Info("no seed file for lesson",
				"component", "bootstrap",
				"action", "seed_missing",
				"lesson", slug,
			)
			report.FilesSkipped++
			continue
		}

		pairs, err := readSeedFile(path)
		if err != nil {
			slog.Error("seed file unreadable, skipping lesson",
				"component", "bootstrap",
				"action", "seed_invalid",
				"lesson", slug,
				"path", path,
				"error", err,
			)
			report.FilesSkipped++
			continue
		}

		inserted, err := si.importLesson(ctx, slug, pairs)
		if err != nil {
			return report, err
		}

		report.LessonsImported++
		report.EntriesInserted += inserted

		slog.Info("seeded lesson",
			"component", "bootstrap",
			"action", "seeded",
			"lesson", slug,
			"path", path,
			"inserted", inserted,
		)
	}

	return report, nil
}

func (si *SeedImporter) importLesson(ctx context.Context, slug string, pairs []types.Pair) (int, error) {
	valid, rejected := validation.CleanPairs(pairs)
	if len(rejected) > 0 {
		slog.Warn("seed file contains invalid pairs",
			"component", "bootstrap",
			"action", "seed_pairs_rejected",
			"lesson", slug,
			"errors", len(rejected),
		)
	}

	inserted := 0
	for _, p := range valid {
		ok, err := si.target.InsertOrIgnore(ctx, slug, p)
		if err != nil {
			return inserted, fmt.Errorf("seed %s: %w", slug, err)
		}
		if ok {
			inserted++
		}
	}

	lesson := types.Lesson{
		Slug:       slug,
		Title:      types.DefaultLessonTitle(slug),
		EntryCount: inserted,
	}
	if err := si.target.UpsertLesson(ctx, lesson); err != nil {
		return inserted, fmt.Errorf("seed %s: %w", slug, err)
	}

	return inserted, nil
}

// seedFileNames returns the file names tried for a lesson: the slug itself,
// then the unpadded number form (lesson06 → lesson6.json).
func seedFileNames(slug string) []string {
	names := []string{slug + ".json"}
	if n, ok := types.LessonNumber(slug); ok {
		if alt := fmt.Sprintf("lesson%d.json", n); alt != names[0] {
			names = append(names, alt)
		}
	}
	return names
}

// findSeedFile returns the first existing seed file, trying every name in
// each search path before moving to the next path.
func findSeedFile(slug string, searchPaths []string) (string, bool) {
	names := seedFileNames(slug)
	for _, dir := range searchPaths {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
				return path, true
			}
		}
	}
	return "", false
}

func readSeedFile(path string) ([]types.Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var pairs []types.Pair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	return pairs, nil
}
