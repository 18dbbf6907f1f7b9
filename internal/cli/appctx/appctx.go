// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger setup and database opening to
// reduce boilerplate across commands.
package appctx

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lherron/ljmigrate/internal/config"
	"github.com/lherron/ljmigrate/internal/db"
	"github.com/lherron/ljmigrate/internal/logging"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration with flag overrides applied
	Config *config.Config

	// DB is the opened database connection (nil if NeedsDB is false)
	DB *db.DB

	Logger *logrus.Logger
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsDB indicates whether to open the database.
	NeedsDB bool

	// RequireTables lists tables that must exist before the command runs.
	RequireTables []string

	// RequireLegacy adds the configured legacy table to RequireTables.
	RequireLegacy bool
}

// DefaultOptions returns default options (DB required, no table checks).
func DefaultOptions() Options {
	return Options{NeedsDB: true}
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The database is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg)
	app.Config = cfg

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	app.Logger = logger

	if !opts.NeedsDB {
		return app, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	app.DB = database

	tables := opts.RequireTables
	if opts.RequireLegacy {
		tables = append([]string{cfg.LegacyTable}, tables...)
	}
	if len(tables) > 0 {
		if err := database.Session().RequireTables(Context(cmd), tables...); err != nil {
			app.Close()
			return nil, fmt.Errorf("database is not ready for migration: %w", err)
		}
	}

	return app, nil
}

// applyFlags overrides config values with the global flags that were set.
// --db is shorthand for a SQLite database file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if v := flagValue(cmd, "driver"); v != "" {
		cfg.Driver = v
	}
	if v := flagValue(cmd, "dsn"); v != "" {
		cfg.DSN = v
	}
	if v := flagValue(cmd, "db"); v != "" {
		cfg.Driver = db.DriverSQLite
		cfg.DSN = v
	}
	if v := flagValue(cmd, "log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v := flagValue(cmd, "log-format"); v != "" {
		cfg.LogFormat = v
	}
}

// Context returns the command's context, or a background context when the
// command was not started through ExecuteContext.
func Context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func flagValue(cmd *cobra.Command, name string) string {
	f := cmd.Flag(name)
	if f == nil {
		return ""
	}
	return f.Value.String()
}
