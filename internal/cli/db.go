package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lherron/ljmigrate/internal/cli/appctx"
	"github.com/lherron/ljmigrate/internal/db"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Rehearsal database operations",
	Long: `Commands for preparing and copying SQLite rehearsal databases. Production
schemas are managed by the application that owns them; these commands exist
so a migration can be rehearsed on a local copy.`,
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the legacy and unified journal tables",
	Long: `Applies the embedded rehearsal schema to a SQLite database: the legacy
journal table, the journals header table, the attachable and customizable link
tables and one data table per journal type.

Each schema file is applied exactly once and tracked in schema_migrations, so
the command is safe to run multiple times. Use --status to list applied and
pending files without changing anything.`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runDBInit),
}

var dbSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Create a WAL-safe copy of a SQLite database",
	Long: `Creates a consistent point-in-time copy of the SQLite database with VACUUM
INTO. The copy is immediately usable without WAL/SHM files; take one before a
migration run so it can be repeated from the same starting point.`,
	RunE: appctx.WithApp(appctx.DefaultOptions(), runDBSnapshot),
}

var (
	dbInitStatus   bool
	dbSnapshotOut  string
	dbSnapshotJSON bool
)

type snapshotManifest struct {
	Timestamp      string `json:"timestamp"`
	SourceDBPath   string `json:"source_db_path"`
	SnapshotDBPath string `json:"snapshot_db_path"`
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbSnapshotCmd)

	dbInitCmd.Flags().BoolVar(&dbInitStatus, "status", false, "Show applied and pending schema files")

	dbSnapshotCmd.Flags().StringVar(&dbSnapshotOut, "out", "", "Output path for snapshot database (required)")
	dbSnapshotCmd.Flags().BoolVar(&dbSnapshotJSON, "json", false, "Output JSON manifest")
	dbSnapshotCmd.MarkFlagRequired("out")
}

func runDBInit(app *appctx.App, cmd *cobra.Command, args []string) error {
	if dbInitStatus {
		return showSchemaStatus(cmd.OutOrStdout(), app.DB)
	}

	applied, err := app.DB.MigrateWithInfo()
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(applied) == 0 {
		fmt.Fprintln(out, "Database is up to date. No schema files to apply.")
		return nil
	}
	for _, m := range applied {
		fmt.Fprintf(out, "✓ Applied: %s\n", m)
	}
	fmt.Fprintf(out, "\nApplied %d schema file(s) to %s.\n", len(applied), app.DB.Path())
	return nil
}

func showSchemaStatus(out io.Writer, database *db.DB) error {
	applied, pending, err := database.MigrationStatus()
	if err != nil {
		return fmt.Errorf("failed to get schema status: %w", err)
	}

	if len(applied) > 0 {
		fmt.Fprintln(out, "Applied:")
		for _, m := range applied {
			fmt.Fprintf(out, "  ✓ %s\n", m)
		}
	}
	if len(pending) > 0 {
		if len(applied) > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, "Pending:")
		for _, m := range pending {
			fmt.Fprintf(out, "  ○ %s\n", m)
		}
	}
	return nil
}

func runDBSnapshot(app *appctx.App, cmd *cobra.Command, args []string) error {
	manifest, err := snapshot(app.DB, dbSnapshotOut)
	if err != nil {
		return err
	}

	if dbSnapshotJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(manifest)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Created snapshot: %s\n", manifest.SnapshotDBPath)
	fmt.Fprintf(cmd.OutOrStdout(), "  Source: %s\n", manifest.SourceDBPath)
	fmt.Fprintf(cmd.OutOrStdout(), "  Timestamp: %s\n", manifest.Timestamp)
	fmt.Fprintf(cmd.OutOrStdout(), "\nTo rehearse against this snapshot:\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  ljmigrate --db %s run --dry-run\n", manifest.SnapshotDBPath)
	return nil
}

// snapshot copies a SQLite database to out with VACUUM INTO
func snapshot(database *db.DB, out string) (*snapshotManifest, error) {
	if database.Dialect().Driver != db.DriverSQLite {
		return nil, fmt.Errorf("snapshots are only supported for %s databases", db.DriverSQLite)
	}
	if _, err := os.Stat(out); err == nil {
		return nil, fmt.Errorf("output file already exists: %s (remove it first or choose a different path)", out)
	}

	if _, err := database.Exec("VACUUM INTO ?", out); err != nil {
		os.Remove(out)
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}

	return &snapshotManifest{
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		SourceDBPath:   database.Path(),
		SnapshotDBPath: out,
	}, nil
}
