// Package migration runs the legacy journal consolidation: the pre-flight
// check, the ordered row stream, the combiner and the per-type writers.
package migration

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lherron/ljmigrate/internal/combine"
	"github.com/lherron/ljmigrate/internal/db"
	"github.com/lherron/ljmigrate/internal/domain"
	"github.com/lherron/ljmigrate/internal/journal"
	"github.com/lherron/ljmigrate/internal/legacy"
	"github.com/lherron/ljmigrate/internal/logging"
	"github.com/lherron/ljmigrate/internal/strategy"
)

// DefaultProgressEvery is the number of rows between progress lines
const DefaultProgressEvery = 1000

// Options controls a run
type Options struct {
	// Atomic runs the whole migration in one transaction
	Atomic bool
	// DryRun runs the whole migration in a transaction that is always
	// rolled back. It implies Atomic.
	DryRun bool
	// ProgressEvery is the number of rows between progress lines
	ProgressEvery int
	// Table is the legacy journal table (legacy.DefaultTable when empty)
	Table string
}

// DefaultOptions returns options for an atomic run
func DefaultOptions() Options {
	return Options{
		Atomic:        true,
		ProgressEvery: DefaultProgressEvery,
		Table:         legacy.DefaultTable,
	}
}

// Report summarizes a run
type Report struct {
	RunID  string `json:"run_id" yaml:"run_id"`
	DryRun bool   `json:"dry_run" yaml:"dry_run"`
	Atomic bool   `json:"atomic" yaml:"atomic"`
	// Total is the number of legacy rows read
	Total int `json:"total" yaml:"total"`
	// Migrated is the number of rows written by a migrator
	Migrated int `json:"migrated" yaml:"migrated"`
	// Created is the number of journal headers that did not exist before
	Created int `json:"created" yaml:"created"`
	// Ignored counts skipped rows per legacy type without a migrator
	Ignored    map[string]int `json:"ignored" yaml:"ignored"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at" yaml:"finished_at"`
}

// IgnoredTotal returns the number of skipped rows
func (r *Report) IgnoredTotal() int {
	n := 0
	for _, c := range r.Ignored {
		n += c
	}
	return n
}

// IgnoredTypes returns the skipped legacy types in sorted order
func (r *Report) IgnoredTypes() []string {
	types := make([]string, 0, len(r.Ignored))
	for t := range r.Ignored {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Driver runs migrations against one database
type Driver struct {
	db       *db.DB
	registry *strategy.Registry
	logger   logrus.FieldLogger
	opts     Options
	now      func() time.Time
}

// NewDriver creates a driver. A nil registry means strategy.DefaultRegistry.
func NewDriver(database *db.DB, registry *strategy.Registry, logger logrus.FieldLogger, opts Options) *Driver {
	if registry == nil {
		registry = strategy.DefaultRegistry()
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	if opts.Table == "" {
		opts.Table = legacy.DefaultTable
	}
	if opts.DryRun {
		opts.Atomic = true
	}
	return &Driver{
		db:       database,
		registry: registry,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// SetClock replaces the clock used for report timestamps and new journal
// headers.
func (d *Driver) SetClock(now func() time.Time) {
	d.now = now
}

// Run migrates every legacy journal. Any error stops the run; in atomic
// mode nothing is kept. The report is returned in both cases and reflects
// the work done before the failure.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		DryRun:    d.opts.DryRun,
		Atomic:    d.opts.Atomic,
		Ignored:   make(map[string]int),
		StartedAt: d.now().UTC(),
	}
	logger := d.logger.WithFields(logrus.Fields{
		"run_id":  report.RunID,
		"dry_run": report.DryRun,
	})

	run := func(s *db.Session) error {
		return d.migrate(ctx, s, report, logger)
	}

	var err error
	switch {
	case d.opts.DryRun:
		err = d.db.WithRollback(ctx, run)
	case d.opts.Atomic:
		err = d.db.WithTx(ctx, run)
	default:
		err = run(d.db.Session())
	}
	report.FinishedAt = d.now().UTC()

	if err != nil {
		logging.LogError(logger, "migration", "run", err)
		return report, err
	}

	if d.opts.DryRun {
		logger.Info("Dry run finished, all changes rolled back.")
	}
	return report, nil
}

func (d *Driver) migrate(ctx context.Context, session *db.Session, report *Report, logger logrus.FieldLogger) error {
	if err := legacy.NewChecker(session, d.opts.Table).Check(ctx); err != nil {
		return err
	}

	rows, err := legacy.NewSource(session, d.opts.Table, logger).Fetch(ctx)
	if err != nil {
		return err
	}
	report.Total = len(rows)

	writer := journal.NewWriter(session, logger, journal.WithClock(d.now))

	var state combine.State
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("migration interrupted after %d journals: %w", i, err)
		}

		var merged domain.Attributes
		state, merged = combine.Combine(state, row)

		m, ok := d.registry.Resolve(row.Type)
		if !ok {
			report.Ignored[row.Type]++
			continue
		}

		out, err := writer.Write(ctx, row, merged, m)
		if err != nil {
			return &domain.RowError{ID: row.ID, Type: row.Type, Version: row.Version, Err: err}
		}
		report.Migrated++
		if out.HeaderCreated {
			report.Created++
		}

		if i > 0 && i%d.opts.ProgressEvery == 0 {
			logger.WithField("count", i).Infof("%d journals migrated", i)
		}
	}

	for _, t := range report.IgnoredTypes() {
		logger.WithFields(logrus.Fields{"type": t, "count": report.Ignored[t]}).
			Infof("%s was ignored %d times", t, report.Ignored[t])
	}
	return nil
}
