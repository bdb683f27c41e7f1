package main

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/wortschatz/internal/backup"
	"github.com/hyperengineering/wortschatz/internal/snapshot"
	"github.com/hyperengineering/wortschatz/internal/store"
)

var backupDirFlag string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write and inspect the auto-backup",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write the auto-backup now",
	Long:  "Writes every lesson and vocabulary entry to auto-backup.json and mirrors it to S3 when configured.",
	Args:  cobra.NoArgs,
	RunE:  runBackupCreate,
}

var backupInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the current auto-backup",
	Args:  cobra.NoArgs,
	RunE:  runBackupInfo,
}

func init() {
	backupCmd.PersistentFlags().StringVar(&backupDirFlag, "dir", "",
		"Backup directory (overrides config and WORTSCHATZ_BACKUP_DIR)")
	backupInfoCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupInfoCmd)
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadOfflineConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	db, err := store.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := backup.NewWriter(db, cfg.BackupDir(), Version).CreateBackup(ctx, backupDirFlag)
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	uploader, err := snapshot.NewUploader(cfg.SnapshotStorage)
	if err != nil {
		return fmt.Errorf("snapshot storage: %w", err)
	}
	if err := uploader.Upload(ctx, result.Path); err != nil {
		// The local file is written; the mirror can catch up on the next backup.
		slog.Warn("backup upload to S3 failed", "component", "cli", "error", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s (%d lessons, %d entries)\n",
		result.Path, result.Stats.LessonsCount, result.Stats.VocabularyCount)
	return nil
}

func runBackupInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadOfflineConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	dir := backup.ResolveDir(backupDirFlag, cfg.BackupDir())
	info, err := backup.Inspect(dir)
	if info == nil {
		return fmt.Errorf("no backup in %s: %w", dir, err)
	}

	out := cmd.OutOrStdout()
	valid := info.Snapshot != nil

	if jsonOutput {
		doc := map[string]any{
			"path":       info.Path,
			"size_bytes": info.Size,
			"modified":   info.ModTime,
			"valid":      valid,
		}
		if valid {
			doc["backup_date"] = info.Snapshot.BackupDate
			doc["version"] = info.Snapshot.Version
			doc["type"] = info.Snapshot.Type
			doc["lessons"] = len(info.Snapshot.Lessons)
			doc["vocabulary"] = len(info.Snapshot.Vocabulary)
		} else {
			doc["error"] = err.Error()
		}
		return printJSON(out, doc)
	}

	fmt.Fprintf(out, "Path:       %s\n", info.Path)
	fmt.Fprintf(out, "Size:       %s\n", humanize.Bytes(uint64(info.Size)))
	fmt.Fprintf(out, "Modified:   %s (%s)\n", info.ModTime.Format("2006-01-02 15:04:05 MST"), humanize.Time(info.ModTime))
	if !valid {
		fmt.Fprintf(out, "Status:     unusable (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "Written:    %s\n", info.Snapshot.BackupDate.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Version:    %s\n", info.Snapshot.Version)
	fmt.Fprintf(out, "Type:       %s\n", info.Snapshot.Type)
	fmt.Fprintf(out, "Lessons:    %s\n", humanize.Comma(int64(len(info.Snapshot.Lessons))))
	fmt.Fprintf(out, "Vocabulary: %s\n", humanize.Comma(int64(len(info.Snapshot.Vocabulary))))
	return nil
}
