package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/wortschatz/internal/api"
	"github.com/hyperengineering/wortschatz/internal/backup"
	"github.com/hyperengineering/wortschatz/internal/bootstrap"
	"github.com/hyperengineering/wortschatz/internal/config"
	"github.com/hyperengineering/wortschatz/internal/snapshot"
	"github.com/hyperengineering/wortschatz/internal/store"
	"github.com/hyperengineering/wortschatz/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

// rootOverride is the --root flag, replacing the configured data root.
var rootOverride string

var rootCmd = &cobra.Command{
	Use:          "wortschatz",
	Short:        "Wortschatz - German-English vocabulary service",
	Long:         "Serves German-English vocabulary lessons over HTTP. Without a subcommand, runs the server.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootOverride, "root", "",
		"Data root path (overrides config and WORTSCHATZ_DATA_ROOT)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(lessonCmd)
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := loadConfig(config.Load)
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	setupLogger(os.Stdout, cfg.Log)
	slog.Info("logger initialized", "level", cfg.Log.Level)

	// 4. Schema, then restore or seed an empty database. Failure aborts startup.
	outcome, err := newInitializer(cfg).EnsureInitialized(ctx)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	slog.Info("database initialized",
		"source", string(outcome.Source),
		"vocabulary_count", outcome.VocabularyCount,
	)

	// 5. Open the serving store
	db, err := store.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.DBPath())

	// 6. Backups: local writer, optional S3 mirror, background worker
	writer := backup.NewWriter(db, cfg.BackupDir(), Version)
	uploader, err := snapshot.NewUploader(cfg.SnapshotStorage)
	if err != nil {
		db.Close()
		return fmt.Errorf("snapshot storage: %w", err)
	}
	backupWorker := worker.NewBackupWorker(writer, uploader, time.Duration(cfg.Backup.Interval))
	slog.Info("backup worker initialized",
		"dir", cfg.BackupDir(),
		"interval", time.Duration(cfg.Backup.Interval).String(),
		"s3_bucket", cfg.SnapshotStorage.Bucket,
	)

	// 7. Initialize HTTP router
	handler := api.NewHandler(api.Deps{
		Store:       db,
		Exporter:    writer,
		Importer:    backup.NewRestorer(db),
		Backups:     backupWorker,
		Initializer: newInitializer(cfg),
		Uploader:    uploader,
		AdminKey:    cfg.Auth.AdminKey,
		Version:     Version,
	})
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	// 8. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 9. Workers outlive the HTTP server so requests drained during
	// shutdown can still queue a backup.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	var wg sync.WaitGroup
	startWorker(workerCtx, &wg, "backup", backupWorker.Run)

	// 10. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		// Any other error indicates an actual server failure that should trigger shutdown.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel() // Trigger shutdown on server failure
		}
	}()

	// 11. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 12. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 12a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 12b. Stop workers; the backup worker flushes a pending write
	stopWorkers()
	wg.Wait()

	// 12c. Close store
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// loadConfig loads configuration with load and applies --root.
func loadConfig(load func() (*config.Config, error)) (*config.Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if rootOverride != "" {
		cfg.SetRoot(rootOverride)
	}
	return cfg, nil
}

func newInitializer(cfg *config.Config) *bootstrap.Initializer {
	return bootstrap.NewInitializer(bootstrap.Options{
		DBPath:      cfg.DBPath(),
		BackupDir:   cfg.BackupDir(),
		SeedLessons: cfg.Data.SeedLessons,
		SeedPaths:   cfg.SeedSearchPaths(),
	})
}

// setupLogger installs the default logger: JSON unless format is "text".
func setupLogger(w io.Writer, cfg config.LogConfig) {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
