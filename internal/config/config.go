// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the file nor the environment set a value.
const (
	DefaultDriver    = "duckdb"
	DefaultLogLevel  = "info"
	DefaultBatchSize = 1000
	DefaultPageSize  = 0 // no paging
)

// Config holds the warehouse connection and query defaults.
type Config struct {
	Driver    string `yaml:"driver"`     // database/sql driver: duckdb or sqlite3
	DSN       string `yaml:"dsn"`        // driver data source; empty DuckDB is in-memory
	ModelPath string `yaml:"model"`      // model document path
	Locale    string `yaml:"locale"`     // default attribute locale
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	PageSize  int    `yaml:"page_size"`  // default aggregation page size
	BatchSize int    `yaml:"batch_size"` // rows fetched per result batch
	Coalesce  bool   `yaml:"coalesce"`   // coalesce empty aggregates to zero

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string `yaml:"-"`
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads the optional YAML file at path and overlays the environment on
// it. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from STARQUERY_* environment variables.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Driver, "STARQUERY_DB_DRIVER")
	setString(&cfg.DSN, "STARQUERY_DSN")
	setString(&cfg.ModelPath, "STARQUERY_MODEL")
	setString(&cfg.Locale, "STARQUERY_LOCALE")
	setString(&cfg.LogLevel, "STARQUERY_LOG_LEVEL")
	cfg.PageSize = parseIntEnv(cfg, "STARQUERY_PAGE_SIZE", cfg.PageSize)
	cfg.BatchSize = parseIntEnv(cfg, "STARQUERY_BATCH_SIZE", cfg.BatchSize)
	cfg.Coalesce = parseBoolEnvDefault("STARQUERY_COALESCE", cfg.Coalesce)
}

func finish(cfg *Config) error {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch cfg.Driver {
	case "":
		cfg.Driver = DefaultDriver
	case "sqlite":
		cfg.Driver = "sqlite3"
	case "duckdb", "sqlite3":
	default:
		return fmt.Errorf("unsupported STARQUERY_DB_DRIVER %q: must be duckdb or sqlite3", cfg.Driver)
	}
	if cfg.Driver == "sqlite3" && cfg.DSN == "" {
		return fmt.Errorf("STARQUERY_DSN is required for the sqlite3 driver")
	}
	if cfg.Driver == DefaultDriver && cfg.DSN == "" {
		cfg.Warnings = append(cfg.Warnings, "STARQUERY_DSN not set, using an empty in-memory DuckDB database")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PageSize < 0 {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring negative page size %d", cfg.PageSize))
		cfg.PageSize = DefaultPageSize
	}
	return nil
}

func setString(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func parseIntEnv(cfg *Config, key string, defaultVal int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring %s=%q: not an integer", key, v))
		return defaultVal
	}
	return n
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes matching surrounding double or single quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
