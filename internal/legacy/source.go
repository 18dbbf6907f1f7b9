package legacy

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/sirupsen/logrus"

	"github.com/lherron/ljmigrate/internal/db"
)

// Activity types whose rows are migrated before everything else
var leadingActivityTypes = []any{"attachments", "custom_fields"}

// Source reads legacy journal rows in migration order
type Source struct {
	session *db.Session
	table   string
	logger  logrus.FieldLogger
}

// NewSource creates a source reading from table (DefaultTable when empty)
func NewSource(session *db.Session, table string, logger logrus.FieldLogger) *Source {
	if table == "" {
		table = DefaultTable
	}
	return &Source{session: session, table: table, logger: logger}
}

// Fetch returns every legacy row in the order the combiner must see them:
// first all "attachments" and "custom_fields" activity rows, then the rest,
// each batch ordered by journaled_id, activity_type and version. Rows with a
// NULL activity_type belong to neither batch.
func (s *Source) Fetch(ctx context.Context) ([]Row, error) {
	leading, err := s.fetchBatch(ctx, func(sb *sqlbuilder.SelectBuilder) string {
		return sb.In("j.activity_type", leadingActivityTypes...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attachment and custom field journals: %w", err)
	}

	remainder, err := s.fetchBatch(ctx, func(sb *sqlbuilder.SelectBuilder) string {
		return sb.NotIn("j.activity_type", leadingActivityTypes...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remaining journals: %w", err)
	}

	rows := append(leading, remainder...)
	s.logger.WithField("count", len(rows)).Infof("Migrating %d legacy journals.", len(rows))
	return rows, nil
}

func (s *Source) fetchBatch(ctx context.Context, where func(sb *sqlbuilder.SelectBuilder) string) ([]Row, error) {
	sb := s.session.Flavor().NewSelectBuilder()
	sb.Select("j.*")
	sb.From(sb.As(s.session.QuoteTableName(s.table), "j"))
	sb.Where(where(sb))
	sb.OrderBy("j.journaled_id", "j.activity_type", "j.version")

	query, args := sb.Build()
	return s.query(ctx, query, args)
}

// FetchEntity returns the version chain of one journaled entity
func (s *Source) FetchEntity(ctx context.Context, typeName string, journaledID int64) ([]Row, error) {
	sb := s.session.Flavor().NewSelectBuilder()
	sb.Select("j.*")
	sb.From(sb.As(s.session.QuoteTableName(s.table), "j"))
	sb.Where(
		sb.Equal("j.type", typeName),
		sb.Equal("j.journaled_id", journaledID),
	)
	sb.OrderBy("j.version")

	query, args := sb.Build()
	rows, err := s.query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s %d: %w", typeName, journaledID, err)
	}
	return rows, nil
}

// TypeCount is the number of legacy rows of one type
type TypeCount struct {
	Type  string `json:"type" yaml:"type"`
	Count int64  `json:"count" yaml:"count"`
}

// TypeCounts returns the number of legacy rows per type, ordered by type
func (s *Source) TypeCounts(ctx context.Context) ([]TypeCount, error) {
	sb := s.session.Flavor().NewSelectBuilder()
	sb.Select("j.type", sb.As("COUNT(*)", "row_count"))
	sb.From(sb.As(s.session.QuoteTableName(s.table), "j"))
	sb.GroupBy("j.type")
	sb.OrderBy("j.type")

	query, args := sb.Build()
	rows, err := s.session.SelectAll(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count legacy journals: %w", err)
	}

	counts := make([]TypeCount, 0, len(rows))
	for _, r := range rows {
		n, err := db.Int64(r["row_count"])
		if err != nil {
			return nil, fmt.Errorf("failed to count legacy journals: %w", err)
		}
		counts = append(counts, TypeCount{Type: db.String(r["type"]), Count: n})
	}
	return counts, nil
}

func (s *Source) query(ctx context.Context, query string, args []any) ([]Row, error) {
	raw, err := s.session.SelectAll(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(raw))
	for _, r := range raw {
		row, err := FromDB(r)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
