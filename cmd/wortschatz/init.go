package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database without starting the server",
	Long: "Creates the schema, then fills an empty database from the auto-backup " +
		"or, failing that, from the seed files. A populated database is left untouched.",
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadOfflineConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	outcome, err := newInitializer(cfg).EnsureInitialized(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, outcome)
	}

	fmt.Fprintf(out, "Database:   %s\n", cfg.DBPath())
	fmt.Fprintf(out, "Source:     %s\n", outcome.Source)
	fmt.Fprintf(out, "Vocabulary: %d entries\n", outcome.VocabularyCount)
	if outcome.Seeds != nil {
		fmt.Fprintf(out, "Seeds:      %d lessons imported, %d entries inserted, %d files skipped\n",
			outcome.Seeds.LessonsImported, outcome.Seeds.EntriesInserted, outcome.Seeds.FilesSkipped)
	}
	return nil
}
