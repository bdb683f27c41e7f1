package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/hyperengineering/wortschatz/internal/config"
)

var jsonOutput bool

// loadOfflineConfig loads configuration for commands that do not serve
// HTTP and routes their logs to w.
func loadOfflineConfig(w io.Writer) (*config.Config, error) {
	cfg, err := loadConfig(config.LoadOffline)
	if err != nil {
		return nil, err
	}
	setupLogger(w, cfg.Log)
	slog.Debug("configuration loaded", "root", cfg.Data.Root)
	return cfg, nil
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
