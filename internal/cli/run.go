package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lherron/ljmigrate/internal/cli/appctx"
	"github.com/lherron/ljmigrate/internal/journal"
	"github.com/lherron/ljmigrate/internal/migration"
	"github.com/lherron/ljmigrate/internal/render"
	"github.com/lherron/ljmigrate/internal/strategy"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Migrate legacy journals into unified journals",
	Long: `Checks the legacy version chains and migrates every legacy journal whose
type has a migrator. Rows of unknown types are skipped and counted.

By default the whole run is one transaction: any error leaves the database
untouched. --dry-run performs the full migration and rolls it back.`,
	RunE: appctx.WithApp(appctx.Options{
		NeedsDB:       true,
		RequireLegacy: true,
		RequireTables: migrationTables(strategy.DefaultRegistry()),
	}, runMigrate),
}

var (
	runDryRun        bool
	runNoAtomic      bool
	runProgressEvery int
	runReportPath    string
	runFormat        string
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Run the migration and roll everything back")
	runCmd.Flags().BoolVar(&runNoAtomic, "no-atomic", false, "Commit each statement instead of running in one transaction")
	runCmd.Flags().IntVar(&runProgressEvery, "progress-every", 0, "Rows between progress lines (overrides LJMIGRATE_PROGRESS_EVERY)")
	runCmd.Flags().StringVar(&runReportPath, "report", "", "Write the run report to this file (.json, .yaml or .yml)")
	runCmd.Flags().StringVar(&runFormat, "format", "", "Output format: table, json or yaml (overrides LJMIGRATE_OUTPUT)")
}

// migrationTables lists the unified tables a run writes to
func migrationTables(registry *strategy.Registry) []string {
	tables := []string{journal.HeadersTable, strategy.AttachableTable, strategy.CustomizableTable}
	return append(tables, registry.Tables()...)
}

func runMigrate(app *appctx.App, cmd *cobra.Command, args []string) error {
	if runDryRun && runNoAtomic {
		return fmt.Errorf("--dry-run and --no-atomic cannot be combined")
	}

	format, err := outputFormat(runFormat, app.Config.Output)
	if err != nil {
		return err
	}

	opts := migration.DefaultOptions()
	opts.DryRun = runDryRun
	opts.Atomic = !runNoAtomic
	opts.ProgressEvery = app.Config.ProgressEvery
	if cmd.Flags().Changed("progress-every") {
		if runProgressEvery <= 0 {
			return fmt.Errorf("--progress-every must be positive")
		}
		opts.ProgressEvery = runProgressEvery
	}
	opts.Table = app.Config.LegacyTable

	driver := migration.NewDriver(app.DB, strategy.DefaultRegistry(), app.Logger, opts)
	report, runErr := driver.Run(appctx.Context(cmd))

	if runReportPath != "" && report != nil {
		if err := writeReport(runReportPath, report); err != nil {
			if runErr != nil {
				return fmt.Errorf("%w (and failed to write report: %v)", runErr, err)
			}
			return err
		}
	}
	if runErr != nil {
		return runErr
	}

	return renderReport(cmd.OutOrStdout(), format, report)
}

// outputFormat picks the flag value over the configured default
func outputFormat(flag, configured string) (render.Format, error) {
	if flag != "" {
		return render.ParseFormat(flag)
	}
	return render.ParseFormat(configured)
}

func renderReport(w io.Writer, format render.Format, report *migration.Report) error {
	return render.NewRenderer(w, format).Render(report, reportTable(report))
}

func reportTable(report *migration.Report) render.Table {
	rows := [][]string{
		{"run_id", report.RunID},
		{"dry_run", strconv.FormatBool(report.DryRun)},
		{"atomic", strconv.FormatBool(report.Atomic)},
		{"total", strconv.Itoa(report.Total)},
		{"migrated", strconv.Itoa(report.Migrated)},
		{"created", strconv.Itoa(report.Created)},
		{"ignored", strconv.Itoa(report.IgnoredTotal())},
	}
	for _, t := range report.IgnoredTypes() {
		rows = append(rows, []string{"ignored." + t, strconv.Itoa(report.Ignored[t])})
	}
	rows = append(rows, []string{"duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond).String()})

	return render.Table{Headers: []string{"FIELD", "VALUE"}, Rows: rows}
}

// writeReport stores report as YAML or JSON depending on the file extension
func writeReport(path string, report *migration.Report) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(report)
	default:
		data, err = json.MarshalIndent(report, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
