package legacy

import (
	"context"
	"fmt"

	"github.com/lherron/ljmigrate/internal/db"
	"github.com/lherron/ljmigrate/internal/domain"
)

// Checker verifies that legacy version chains are complete before anything
// is written.
type Checker struct {
	session *db.Session
	table   string
}

// NewChecker creates a checker for table (DefaultTable when empty)
func NewChecker(session *db.Session, table string) *Checker {
	if table == "" {
		table = DefaultTable
	}
	return &Checker{session: session, table: table}
}

// Check finds every journal with version > 1 that has more or fewer
// predecessors (itself included) than its version requires. It returns an
// *domain.IncompleteJournalsError listing them, or nil.
func (c *Checker) Check(ctx context.Context) error {
	ids, err := c.InvalidIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return &domain.IncompleteJournalsError{IDs: ids}
	}
	return nil
}

// InvalidIDs returns the ids of the offending journals in ascending order
func (c *Checker) InvalidIDs(ctx context.Context) ([]int64, error) {
	table := c.session.QuoteTableName(c.table)
	query := fmt.Sprintf(`
		SELECT DISTINCT tmp.id
		FROM (
			SELECT
				a.id AS id,
				a.version AS version,
				COUNT(b.id) AS chain_length
			FROM %[1]s AS a
			LEFT JOIN %[1]s AS b
				ON a.version >= b.version
				AND a.journaled_id = b.journaled_id
				AND a.type = b.type
			WHERE a.version > 1
			GROUP BY a.id, a.journaled_id, a.type, a.version
		) AS tmp
		WHERE NOT (tmp.version = tmp.chain_length)
		ORDER BY tmp.id`, table)

	values, err := c.session.SelectValues(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to check legacy journal consistency: %w", err)
	}

	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := db.Int64(v)
		if err != nil {
			return nil, fmt.Errorf("failed to check legacy journal consistency: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
