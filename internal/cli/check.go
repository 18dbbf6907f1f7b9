package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lherron/ljmigrate/internal/cli/appctx"
	"github.com/lherron/ljmigrate/internal/domain"
	"github.com/lherron/ljmigrate/internal/legacy"
	"github.com/lherron/ljmigrate/internal/render"
	"github.com/lherron/ljmigrate/internal/strategy"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify legacy version chains and preview type coverage",
	Long: `Runs the pre-flight consistency check without writing anything: every
legacy journal with version N needs exactly N journals of its entity with
version <= N. Also lists the legacy types found and the data table each one
migrates into; types without a migrator are skipped by 'run'.

Exits non-zero when incomplete chains are found.`,
	RunE: appctx.WithApp(appctx.Options{NeedsDB: true, RequireLegacy: true}, runCheck),
}

var checkFormat string

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkFormat, "format", "", "Output format: table, json or yaml (overrides LJMIGRATE_OUTPUT)")
}

// typeCoverage is one legacy type and where it migrates to
type typeCoverage struct {
	Type     string `json:"type" yaml:"type"`
	Rows     int64  `json:"rows" yaml:"rows"`
	Migrator string `json:"migrator,omitempty" yaml:"migrator,omitempty"`
	Table    string `json:"table,omitempty" yaml:"table,omitempty"`
	Ignored  bool   `json:"ignored" yaml:"ignored"`
}

type checkResult struct {
	OK            bool           `json:"ok" yaml:"ok"`
	IncompleteIDs []int64        `json:"incomplete_ids" yaml:"incomplete_ids"`
	Types         []typeCoverage `json:"types" yaml:"types"`
}

func runCheck(app *appctx.App, cmd *cobra.Command, args []string) error {
	format, err := outputFormat(checkFormat, app.Config.Output)
	if err != nil {
		return err
	}

	ctx := appctx.Context(cmd)
	session := app.DB.Session()

	ids, err := legacy.NewChecker(session, app.Config.LegacyTable).InvalidIDs(ctx)
	if err != nil {
		return err
	}
	counts, err := legacy.NewSource(session, app.Config.LegacyTable, app.Logger).TypeCounts(ctx)
	if err != nil {
		return err
	}

	result := checkResult{
		OK:            len(ids) == 0,
		IncompleteIDs: ids,
		Types:         coverage(counts, strategy.DefaultRegistry()),
	}
	if result.IncompleteIDs == nil {
		result.IncompleteIDs = []int64{}
	}

	if err := render.NewRenderer(cmd.OutOrStdout(), format).Render(result, coverageTable(result.Types)); err != nil {
		return err
	}

	if !result.OK {
		return &domain.IncompleteJournalsError{IDs: ids}
	}
	if format == render.FormatTable {
		fmt.Fprintln(cmd.OutOrStdout(), "\n✓ All legacy version chains are complete")
	}
	return nil
}

func coverage(counts []legacy.TypeCount, registry *strategy.Registry) []typeCoverage {
	out := make([]typeCoverage, 0, len(counts))
	for _, c := range counts {
		entry := typeCoverage{Type: c.Type, Rows: c.Count}
		if m, ok := registry.Resolve(c.Type); ok {
			entry.Migrator = m.Type
			entry.Table = m.Table
		} else {
			entry.Ignored = true
		}
		out = append(out, entry)
	}
	return out
}

func coverageTable(types []typeCoverage) render.Table {
	rows := make([][]string, 0, len(types))
	for _, t := range types {
		target := t.Table
		if t.Ignored {
			target = "(ignored)"
		}
		rows = append(rows, []string{t.Type, strconv.FormatInt(t.Rows, 10), target})
	}
	return render.Table{Headers: []string{"TYPE", "ROWS", "TABLE"}, Rows: rows}
}
