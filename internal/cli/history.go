package cli

import (
	"fmt"
	"io"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lherron/ljmigrate/internal/cli/appctx"
	"github.com/lherron/ljmigrate/internal/combine"
	"github.com/lherron/ljmigrate/internal/legacy"
	"github.com/lherron/ljmigrate/internal/render"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the cumulative state of one legacy entity at every version",
	Long: `Reads the legacy journals of one entity and prints the complete attribute
state the migration would write for each version, followed by a unified diff
against the previous version.

Example:
  ljmigrate history --type WorkPackageJournal --id 42`,
	RunE: appctx.WithApp(appctx.Options{NeedsDB: true, RequireLegacy: true}, runHistory),
}

var (
	historyType   string
	historyID     int64
	historyFormat string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyType, "type", "", "Legacy journal type, e.g. WorkPackageJournal (required)")
	historyCmd.Flags().Int64Var(&historyID, "id", 0, "Journaled entity id (required)")
	historyCmd.Flags().StringVar(&historyFormat, "format", "", "Output format: table, json or yaml (overrides LJMIGRATE_OUTPUT)")
	historyCmd.MarkFlagRequired("type")
	historyCmd.MarkFlagRequired("id")
}

// historyEntry is the cumulative state at one version
type historyEntry struct {
	Version    int64          `json:"version" yaml:"version"`
	LegacyID   int64          `json:"legacy_id" yaml:"legacy_id"`
	Attributes map[string]any `json:"attributes" yaml:"attributes"`
}

func runHistory(app *appctx.App, cmd *cobra.Command, args []string) error {
	format, err := outputFormat(historyFormat, app.Config.Output)
	if err != nil {
		return err
	}

	rows, err := legacy.NewSource(app.DB.Session(), app.Config.LegacyTable, app.Logger).
		FetchEntity(appctx.Context(cmd), historyType, historyID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no legacy journals found for %s %d", historyType, historyID)
	}

	entries := historyEntries(rows)
	if format != render.FormatTable {
		return render.NewRenderer(cmd.OutOrStdout(), format).Render(entries, render.Table{})
	}
	return writeHistory(cmd.OutOrStdout(), entries)
}

func historyEntries(rows []legacy.Row) []historyEntry {
	snapshots := combine.Snapshots(rows)
	entries := make([]historyEntry, len(rows))
	for i, row := range rows {
		entries[i] = historyEntry{
			Version:    row.Version,
			LegacyID:   row.ID,
			Attributes: snapshots[i].Snapshot(),
		}
	}
	return entries
}

// writeHistory prints every version as YAML with a diff to its predecessor
func writeHistory(w io.Writer, entries []historyEntry) error {
	var previous string
	for i, e := range entries {
		current, err := yaml.Marshal(e.Attributes)
		if err != nil {
			return fmt.Errorf("failed to encode version %d: %w", e.Version, err)
		}

		fmt.Fprintf(w, "== version %d (legacy journal %d) ==\n", e.Version, e.LegacyID)
		fmt.Fprint(w, string(current))

		if i > 0 {
			diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
				A:        difflib.SplitLines(previous),
				B:        difflib.SplitLines(string(current)),
				FromFile: fmt.Sprintf("version %d", entries[i-1].Version),
				ToFile:   fmt.Sprintf("version %d", e.Version),
				Context:  1,
			})
			if err != nil {
				return fmt.Errorf("failed to diff version %d: %w", e.Version, err)
			}
			if diff != "" {
				fmt.Fprintln(w)
				fmt.Fprint(w, diff)
			}
		}
		fmt.Fprintln(w)
		previous = string(current)
	}
	return nil
}
