package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ljmigrate",
	Short: "Consolidate legacy per-type journals into unified journals",
	Long: `ljmigrate migrates rows of the legacy journal table, which store only the
attributes that changed in each version, into the unified journal schema: one
journals header per entity version linked to a type-specific data row holding
the complete attribute state at that version.

Run 'ljmigrate check' first to verify the legacy version chains, then
'ljmigrate run --dry-run' to rehearse the migration without keeping changes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to a SQLite database file (shorthand for --driver sqlite3 --dsn PATH)")
	rootCmd.PersistentFlags().String("driver", "", "Database driver: sqlite3, postgres or mysql (overrides LJMIGRATE_DB_DRIVER)")
	rootCmd.PersistentFlags().String("dsn", "", "Database connection string (overrides LJMIGRATE_DB_DSN)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error (overrides LJMIGRATE_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (overrides LJMIGRATE_LOG_FORMAT)")
}
