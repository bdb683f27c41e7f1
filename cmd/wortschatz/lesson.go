package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/wortschatz/internal/store"
)

var lessonCmd = &cobra.Command{
	Use:   "lesson",
	Short: "Inspect lessons",
}

var lessonListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all lessons",
	Args:  cobra.NoArgs,
	RunE:  runLessonList,
}

func init() {
	lessonListCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	lessonCmd.AddCommand(lessonListCmd)
}

func runLessonList(cmd *cobra.Command, args []string) error {
	cfg, err := loadOfflineConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	db, err := store.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return err
	}
	defer db.Close()

	lessons, err := db.ListLessons(cmd.Context())
	if err != nil {
		return fmt.Errorf("list lessons: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"lessons": lessons,
			"total":   len(lessons),
		})
	}

	if len(lessons) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No lessons found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "SLUG\tTITLE\tENTRIES\tCREATED")
	for _, l := range lessons {
		created := "-"
		if !l.CreatedAt.IsZero() {
			created = humanize.Time(l.CreatedAt)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", l.Slug, l.Title, l.EntryCount, created)
	}
	w.Flush()

	return nil
}
