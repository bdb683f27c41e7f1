package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/hyperengineering/wortschatz/migrations"
	"github.com/pressly/goose/v3"
)

// gooseMu serializes migration runs; goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// RunMigrations applies all pending database migrations using goose.
// It uses the embedded SQL files from the migrations package.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	// Disable goose's default logging to avoid stdout noise
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
