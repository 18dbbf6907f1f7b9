// Package journal writes cumulative legacy snapshots into the unified
// journal tables: one header row in journals per entity version, linked to
// one row in the type-specific data table.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/sirupsen/logrus"

	"github.com/lherron/ljmigrate/internal/db"
	"github.com/lherron/ljmigrate/internal/domain"
	"github.com/lherron/ljmigrate/internal/legacy"
	"github.com/lherron/ljmigrate/internal/strategy"
)

// HeadersTable is the unified journal header table
const HeadersTable = "journals"

// Outcome describes what Write did for one legacy row
type Outcome struct {
	JournalID     int64
	DataID        int64
	HeaderCreated bool
	DataCreated   bool
	// Columns are the data columns written, in statement order
	Columns []string
}

// Writer writes unified journals through a session
type Writer struct {
	session *db.Session
	logger  logrus.FieldLogger
	now     func() time.Time
}

// Option configures a Writer
type Option func(*Writer)

// WithClock sets the clock used for created_at of new headers
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

// NewWriter creates a writer
func NewWriter(session *db.Session, logger logrus.FieldLogger, opts ...Option) *Writer {
	w := &Writer{
		session: session,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write stores the cumulative snapshot merged of row using m. Rows that
// were already migrated (exactly one header and one data row) are updated
// in place; more than one match is an error.
func (w *Writer) Write(ctx context.Context, row legacy.Row, merged domain.Attributes, m *strategy.Migrator) (Outcome, error) {
	var out Outcome

	journalID, created, err := w.resolveHeader(ctx, row, m)
	if err != nil {
		return out, err
	}
	out.JournalID = journalID
	out.HeaderCreated = created

	columns, err := w.columnSet(ctx, m.Table)
	if err != nil {
		return out, err
	}

	kv := project(merged, columns, m)
	hc := strategy.HookContext{Session: w.session, Row: row, JournalID: journalID}
	if err := m.RunHook(ctx, hc, kv); err != nil {
		return out, err
	}
	kv = w.dropUnknown(kv, columns, m.Table)
	for _, k := range kv.Keys {
		out.Columns = append(out.Columns, strategy.MapKey(k))
	}

	dataID, dataCreated, err := w.writeData(ctx, journalID, kv, m)
	if err != nil {
		return out, err
	}
	out.DataID = dataID
	out.DataCreated = dataCreated

	if err := w.updateHeader(ctx, journalID, dataID, row, m); err != nil {
		return out, err
	}

	w.logger.WithFields(logrus.Fields{
		"legacy_id":  row.ID,
		"journal_id": journalID,
		"data_id":    dataID,
		"table":      m.Table,
	}).Debug("Migrated legacy journal")

	return out, nil
}

func (w *Writer) resolveHeader(ctx context.Context, row legacy.Row, m *strategy.Migrator) (int64, bool, error) {
	ids, err := w.fetchHeaders(ctx, row.JournaledID, m.EntityClass, row.Version)
	if err != nil {
		return 0, false, err
	}

	created := false
	if len(ids) == 0 {
		ib := w.session.Flavor().NewInsertBuilder()
		ib.InsertInto(w.session.QuoteTableName(HeadersTable))
		ib.Cols("journable_id", "journable_type", "version", "created_at")
		ib.Values(row.JournaledID, m.EntityClass, row.Version, w.now().UTC())
		if err := w.exec(ctx, ib); err != nil {
			return 0, false, fmt.Errorf("failed to create journal for %s %d version %d: %w", m.EntityClass, row.JournaledID, row.Version, err)
		}
		created = true

		if ids, err = w.fetchHeaders(ctx, row.JournaledID, m.EntityClass, row.Version); err != nil {
			return 0, false, err
		}
	}

	if len(ids) != 1 {
		return 0, false, &domain.AmbiguousJournalsError{
			Table: HeadersTable,
			Key:   fmt.Sprintf("journable_id = %d AND journable_type = %s AND version = %d", row.JournaledID, m.EntityClass, row.Version),
			Count: len(ids),
		}
	}
	return ids[0], created, nil
}

func (w *Writer) fetchHeaders(ctx context.Context, journableID int64, journableType string, version int64) ([]int64, error) {
	sb := w.session.Flavor().NewSelectBuilder()
	sb.Select("j.id")
	sb.From(sb.As(w.session.QuoteTableName(HeadersTable), "j"))
	sb.Where(
		sb.Equal("j.journable_id", journableID),
		sb.Equal("j.journable_type", journableType),
		sb.Equal("j.version", version),
	)

	ids, err := w.selectIDs(ctx, sb)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch journal for %s %d version %d: %w", journableType, journableID, version, err)
	}
	return ids, nil
}

func (w *Writer) columnSet(ctx context.Context, table string) (map[string]bool, error) {
	cols, err := w.session.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set, nil
}

// project keeps the new value of every attribute that names a column of the
// data table (after key mapping) or that the migrator claims for its hook.
// The row's own id and journal_id are never taken from a changeset.
func project(merged domain.Attributes, columns map[string]bool, m *strategy.Migrator) *strategy.KeyValues {
	kv := &strategy.KeyValues{}
	for _, key := range merged.Keys() {
		mapped := strategy.MapKey(key)
		if reservedColumn(mapped) {
			continue
		}
		if columns[mapped] || m.Claimed(key) {
			kv.Append(key, merged[key].New)
		}
	}
	return kv
}

func reservedColumn(column string) bool {
	return column == "id" || column == "journal_id"
}

// dropUnknown removes pairs the hook left behind that still do not name a
// column.
func (w *Writer) dropUnknown(kv *strategy.KeyValues, columns map[string]bool, table string) *strategy.KeyValues {
	out := &strategy.KeyValues{}
	seen := make(map[string]bool, kv.Len())
	for i, key := range kv.Keys {
		mapped := strategy.MapKey(key)
		if !columns[mapped] || reservedColumn(mapped) || seen[mapped] {
			w.logger.WithFields(logrus.Fields{"table": table, "key": key}).Debug("Dropping attribute without column")
			continue
		}
		seen[mapped] = true
		out.Append(key, kv.Values[i])
	}
	return out
}

func (w *Writer) writeData(ctx context.Context, journalID int64, kv *strategy.KeyValues, m *strategy.Migrator) (int64, bool, error) {
	ids, err := w.fetchData(ctx, journalID, m.Table)
	if err != nil {
		return 0, false, err
	}
	if len(ids) > 1 {
		return 0, false, w.ambiguousData(journalID, m.Table, len(ids))
	}

	if len(ids) == 1 {
		if kv.Len() == 0 {
			return ids[0], false, nil
		}
		ub := w.session.Flavor().NewUpdateBuilder()
		ub.Update(w.session.QuoteTableName(m.Table))
		assignments := make([]string, 0, kv.Len())
		for i, key := range kv.Keys {
			assignments = append(assignments, ub.Assign(w.session.QuoteColumnName(strategy.MapKey(key)), kv.Values[i]))
		}
		ub.Set(assignments...)
		ub.Where(ub.Equal("id", ids[0]))
		if err := w.exec(ctx, ub); err != nil {
			return 0, false, fmt.Errorf("failed to update %s row %d: %w", m.Table, ids[0], err)
		}
		return ids[0], false, nil
	}

	cols := []string{w.session.QuoteColumnName("journal_id")}
	values := []any{journalID}
	for i, key := range kv.Keys {
		cols = append(cols, w.session.QuoteColumnName(strategy.MapKey(key)))
		values = append(values, kv.Values[i])
	}

	ib := w.session.Flavor().NewInsertBuilder()
	ib.InsertInto(w.session.QuoteTableName(m.Table))
	ib.Cols(cols...)
	ib.Values(values...)
	if err := w.exec(ctx, ib); err != nil {
		return 0, false, fmt.Errorf("failed to insert into %s for journal %d: %w", m.Table, journalID, err)
	}

	if ids, err = w.fetchData(ctx, journalID, m.Table); err != nil {
		return 0, false, err
	}
	if len(ids) != 1 {
		return 0, false, w.ambiguousData(journalID, m.Table, len(ids))
	}
	return ids[0], true, nil
}

func (w *Writer) fetchData(ctx context.Context, journalID int64, table string) ([]int64, error) {
	sb := w.session.Flavor().NewSelectBuilder()
	sb.Select("d.id")
	sb.From(sb.As(w.session.QuoteTableName(table), "d"))
	sb.Where(sb.Equal("d.journal_id", journalID))

	ids, err := w.selectIDs(ctx, sb)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s for journal %d: %w", table, journalID, err)
	}
	return ids, nil
}

func (w *Writer) ambiguousData(journalID int64, table string, count int) error {
	return &domain.AmbiguousJournalsError{
		Table: table,
		Key:   fmt.Sprintf("journal_id = %d", journalID),
		Count: count,
	}
}

func (w *Writer) updateHeader(ctx context.Context, journalID, dataID int64, row legacy.Row, m *strategy.Migrator) error {
	var notes, activity any
	if row.Notes != nil {
		notes = *row.Notes
	}
	if row.ActivityType != nil {
		activity = *row.ActivityType
	}

	ub := w.session.Flavor().NewUpdateBuilder()
	ub.Update(w.session.QuoteTableName(HeadersTable))
	ub.Set(
		ub.Assign("journable_data_id", dataID),
		ub.Assign("journable_data_type", m.Type),
		ub.Assign("user_id", row.UserID),
		ub.Assign("notes", notes),
		ub.Assign("created_at", row.CreatedAt),
		ub.Assign("activity_type", activity),
	)
	ub.Where(ub.Equal("id", journalID))

	if err := w.exec(ctx, ub); err != nil {
		return fmt.Errorf("failed to update journal %d: %w", journalID, err)
	}
	return nil
}

func (w *Writer) selectIDs(ctx context.Context, sb *sqlbuilder.SelectBuilder) ([]int64, error) {
	query, args := sb.Build()
	values, err := w.session.SelectValues(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := db.Int64(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (w *Writer) exec(ctx context.Context, b sqlbuilder.Builder) error {
	query, args := b.Build()
	w.logger.WithField("sql", w.session.Statement(query, args)).Trace("exec")
	return w.session.Exec(ctx, query, args...)
}
