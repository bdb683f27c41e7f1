// Package bootstrap brings a vocabulary database into a usable state:
// schema first, then restore from the auto-backup, then seed files.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hyperengineering/wortschatz/internal/backup"
	"github.com/hyperengineering/wortschatz/internal/store"
)

// State is a step of the initialization sequence.
type State string

const (
	StateSchemaPending   State = "schema_pending"
	StatePopulationCheck State = "population_check"
	StateRestoreAttempt  State = "restore_attempt"
	StateSeedImport      State = "seed_import"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// Source records where the data of an initialized store came from.
type Source string

const (
	SourceAlreadyPopulated Source = "already_populated"
	SourceBackup           Source = "backup"
	SourceSeeds            Source = "seeds"
)

// Options configures an Initializer.
type Options struct {
	DBPath      string
	BackupDir   string
	SeedLessons []string
	SeedPaths   []string
}

// Outcome reports a finished initialization.
type Outcome struct {
	State           State       `json:"state"`
	Source          Source      `json:"source"`
	VocabularyCount int64       `json:"vocabulary_count"`
	Seeds           *SeedReport `json:"seeds,omitempty"`
}

// Initializer runs the initialization sequence against its own store handle.
type Initializer struct {
	opts Options
	mu   sync.Mutex
}

// NewInitializer creates an Initializer.
func NewInitializer(opts Options) *Initializer {
	return &Initializer{opts: opts}
}

// EnsureInitialized runs schema → population check → restore → seeds.
// The store handle it opens is closed on every path. A returned error means
// the Failed state; the caller must not serve from this database.
func (in *Initializer) EnsureInitialized(ctx context.Context) (*Outcome, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	state := StateSchemaPending
	fail := func(err error) (*Outcome, error) {
		slog.Error("initialization failed",
			"component", "bootstrap",
			"action", "failed",
			"state", string(state),
			"error", err,
		)
		return &Outcome{State: StateFailed}, fmt.Errorf("initialize %s: %w", state, err)
	}

	st, err := store.Open(in.opts.DBPath)
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		return fail(err)
	}

	state = StatePopulationCheck
	count, err := st.CountVocabulary(ctx)
	if err != nil {
		return fail(err)
	}
	if count > 0 {
		slog.Info("database already populated",
			"component", "bootstrap",
			"action", "already_populated",
			"vocabulary_count", count,
		)
		return &Outcome{State: StateDone, Source: SourceAlreadyPopulated, VocabularyCount: count}, nil
	}

	state = StateRestoreAttempt
	restored, err := backup.NewRestorer(st).RestoreFromBackup(ctx, in.opts.BackupDir)
	if err != nil {
		return fail(err)
	}
	if restored {
		count, err := st.CountVocabulary(ctx)
		if err != nil {
			return fail(err)
		}
		return &Outcome{State: StateDone, Source: SourceBackup, VocabularyCount: count}, nil
	}

	state = StateSeedImport
	report, err := NewSeedImporter(st).Import(ctx, in.opts.SeedLessons, in.opts.SeedPaths)
	if err != nil {
		return fail(err)
	}
	count, err = st.CountVocabulary(ctx)
	if err != nil {
		return fail(err)
	}

	slog.Info("database seeded",
		"component", "bootstrap",
		"action", "seeded",
		"lessons", report.LessonsImported,
		"vocabulary_count", count,
	)

	return &Outcome{State: StateDone, Source: SourceSeeds, VocabularyCount: count, Seeds: &report}, nil
}
