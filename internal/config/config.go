package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Data            DataConfig            `yaml:"data"`
	Backup          BackupConfig          `yaml:"backup"`
	SnapshotStorage SnapshotStorageConfig `yaml:"snapshot_storage"`
	Auth            AuthConfig            `yaml:"auth"`
	Log             LogConfig             `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DataConfig locates the database and the seed files.
type DataConfig struct {
	Root        string   `yaml:"root"`
	DBFile      string   `yaml:"db_file"`
	SeedPaths   []string `yaml:"seed_paths"`
	SeedLessons []string `yaml:"seed_lessons"`
}

// BackupConfig contains auto-backup settings.
type BackupConfig struct {
	Dir      string   `yaml:"dir"`
	Interval Duration `yaml:"interval"`
}

// SnapshotStorageConfig contains S3-compatible mirror settings.
// An empty Bucket disables the mirror.
type SnapshotStorageConfig struct {
	Endpoint       string   `yaml:"endpoint"`
	Bucket         string   `yaml:"bucket"`
	Region         string   `yaml:"region"`
	Prefix         string   `yaml:"prefix"`
	UseSSL         *bool    `yaml:"use_ssl"`
	URLExpiry      Duration `yaml:"url_expiry"`
	UploadAttempts int      `yaml:"upload_attempts"`
	AccessKey      string   `yaml:"-"` // env-only, never in YAML
	SecretKey      string   `yaml:"-"` // env-only, never in YAML
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	AdminKey string `yaml:"-"` // env-only, never in YAML
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DBPath returns the database file path under the data root.
// An absolute DBFile is used as is.
func (c *Config) DBPath() string {
	if filepath.IsAbs(c.Data.DBFile) {
		return c.Data.DBFile
	}
	return filepath.Join(c.Data.Root, c.Data.DBFile)
}

// BackupDir returns the configured backup directory, or <root>/backups.
func (c *Config) BackupDir() string {
	if c.Backup.Dir != "" {
		return expandHome(c.Backup.Dir)
	}
	return filepath.Join(c.Data.Root, "backups")
}

// SeedSearchPaths returns the seed directories in priority order.
// Defaults to <root>/seed, then <root>.
func (c *Config) SeedSearchPaths() []string {
	if len(c.Data.SeedPaths) == 0 {
		return []string{filepath.Join(c.Data.Root, "seed"), c.Data.Root}
	}
	paths := make([]string, 0, len(c.Data.SeedPaths))
	for _, p := range c.Data.SeedPaths {
		paths = append(paths, expandHome(p))
	}
	return paths
}

// SetRoot replaces the data root, expanding a leading ~/.
func (c *Config) SetRoot(root string) {
	c.Data.Root = expandHome(root)
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → .env → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOffline loads configuration for commands that never serve HTTP
// (init, backup, lesson). The admin key is not required.
func LoadOffline() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.validateData(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() (*Config, error) {
	cfg := newDefaults()

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	configPath := getEnv("WORTSCHATZ_CONFIG_PATH", "config/wortschatz.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	cfg.Data.Root = expandHome(cfg.Data.Root)
	return cfg, nil
}

// loadDotEnv applies path to the environment. Values already in the
// environment win. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	// Load YAML file (file must exist for this function)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.Data.Root = expandHome(cfg.Data.Root)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	useSSL := true
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Data: DataConfig{
			Root:   "data",
			DBFile: "vocabulary.db",
			SeedLessons: []string{
				"lesson01", "lesson02", "lesson03",
				"lesson04", "lesson05", "lesson06",
			},
		},
		Backup: BackupConfig{
			Interval: 0,
		},
		SnapshotStorage: SnapshotStorageConfig{
			Region:         "us-east-1",
			Prefix:         "wortschatz",
			UseSSL:         &useSSL,
			URLExpiry:      Duration(15 * time.Minute),
			UploadAttempts: 3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("WORTSCHATZ_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("WORTSCHATZ_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("WORTSCHATZ_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("WORTSCHATZ_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Data
	if v := os.Getenv("WORTSCHATZ_DATA_ROOT"); v != "" {
		cfg.Data.Root = v
	}
	if v := os.Getenv("WORTSCHATZ_DB_FILE"); v != "" {
		cfg.Data.DBFile = v
	}
	if v := os.Getenv("WORTSCHATZ_SEED_PATHS"); v != "" {
		cfg.Data.SeedPaths = splitList(v)
	}
	if v := os.Getenv("WORTSCHATZ_SEED_LESSONS"); v != "" {
		cfg.Data.SeedLessons = splitList(v)
	}

	// Backup
	if v := os.Getenv("WORTSCHATZ_BACKUP_DIR"); v != "" {
		cfg.Backup.Dir = v
	}
	if v := os.Getenv("WORTSCHATZ_BACKUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backup.Interval = Duration(d)
		}
	}

	// Snapshot storage
	if v := os.Getenv("WORTSCHATZ_SNAPSHOT_BUCKET"); v != "" {
		cfg.SnapshotStorage.Bucket = v
	}
	if v := os.Getenv("WORTSCHATZ_S3_ENDPOINT"); v != "" {
		cfg.SnapshotStorage.Endpoint = v
	}
	if v := os.Getenv("WORTSCHATZ_S3_REGION"); v != "" {
		cfg.SnapshotStorage.Region = v
	}
	if v := os.Getenv("WORTSCHATZ_S3_PREFIX"); v != "" {
		cfg.SnapshotStorage.Prefix = v
	}
	if v := os.Getenv("WORTSCHATZ_S3_ACCESS_KEY"); v != "" {
		cfg.SnapshotStorage.AccessKey = v
	}
	if v := os.Getenv("WORTSCHATZ_S3_SECRET_KEY"); v != "" {
		cfg.SnapshotStorage.SecretKey = v
	}
	if v := os.Getenv("WORTSCHATZ_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.SnapshotStorage.UseSSL = &useSSL
	}
	if v := os.Getenv("WORTSCHATZ_S3_URL_EXPIRY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SnapshotStorage.URLExpiry = Duration(d)
		}
	}
	if v := os.Getenv("WORTSCHATZ_S3_UPLOAD_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SnapshotStorage.UploadAttempts = n
		}
	}

	// Auth
	if v := os.Getenv("WORTSCHATZ_ADMIN_KEY"); v != "" {
		cfg.Auth.AdminKey = v
	}

	// Log
	if v := os.Getenv("WORTSCHATZ_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("WORTSCHATZ_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set.
// In dev mode (WORTSCHATZ_DEV_MODE=true), admin key validation is skipped.
func (c *Config) validate() error {
	if err := c.validateData(); err != nil {
		return err
	}

	if os.Getenv("WORTSCHATZ_DEV_MODE") == "true" {
		return nil
	}

	if c.Auth.AdminKey == "" {
		return errors.New("WORTSCHATZ_ADMIN_KEY is required")
	}
	return nil
}

func (c *Config) validateData() error {
	if c.Data.Root == "" {
		return errors.New("data.root must not be empty")
	}
	if c.Data.DBFile == "" {
		return errors.New("data.db_file must not be empty")
	}
	return nil
}

// expandHome replaces a leading ~/ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// splitList splits a comma-separated env value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
