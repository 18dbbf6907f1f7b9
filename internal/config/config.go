package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lherron/ljmigrate/internal/db"
	"github.com/lherron/ljmigrate/internal/legacy"
)

// Config represents the application configuration
type Config struct {
	Driver        string `yaml:"driver"`
	DSN           string `yaml:"dsn"`
	LegacyTable   string `yaml:"legacy_table"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	ProgressEvery int    `yaml:"progress_every"`
	Output        string `yaml:"output"`
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/ljmigrate/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		Driver:        db.DriverSQLite,
		LegacyTable:   legacy.DefaultTable,
		LogLevel:      "info",
		LogFormat:     "text",
		ProgressEvery: 1000,
		Output:        "table",
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	// YAML config is optional
	if err := loadYAMLConfig(cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if driver := os.Getenv("LJMIGRATE_DB_DRIVER"); driver != "" {
		cfg.Driver = driver
	}
	if dsn := getEnvOrFile("LJMIGRATE_DB_DSN", "LJMIGRATE_DB_DSN_FILE"); dsn != "" {
		cfg.DSN = dsn
	}
	if table := os.Getenv("LJMIGRATE_LEGACY_TABLE"); table != "" {
		cfg.LegacyTable = table
	}
	if logLevel := os.Getenv("LJMIGRATE_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat := os.Getenv("LJMIGRATE_LOG_FORMAT"); logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if every := os.Getenv("LJMIGRATE_PROGRESS_EVERY"); every != "" {
		n, err := strconv.Atoi(every)
		if err != nil {
			return nil, fmt.Errorf("invalid LJMIGRATE_PROGRESS_EVERY %q: %w", every, err)
		}
		cfg.ProgressEvery = n
	}
	if output := os.Getenv("LJMIGRATE_OUTPUT"); output != "" {
		cfg.Output = output
	}

	return cfg, nil
}

// Validate checks the settings a command needs before it opens the database
func (c *Config) Validate() error {
	if _, err := db.DialectFor(c.Driver); err != nil {
		return err
	}
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("no database configured: set --db, --dsn or LJMIGRATE_DB_DSN")
	}
	if strings.TrimSpace(c.LegacyTable) == "" {
		return fmt.Errorf("legacy table name must not be empty")
	}
	if c.ProgressEvery <= 0 {
		return fmt.Errorf("progress interval must be positive, got %d", c.ProgressEvery)
	}
	switch c.Output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %q: must be table, json or yaml", c.Output)
	}
	return nil
}

// loadYAMLConfig loads configuration from ~/.config/ljmigrate/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "ljmigrate", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		if dir == homeDir {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}
