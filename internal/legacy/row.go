// Package legacy reads the legacy journal table: the ordered row stream the
// migration consumes and the pre-flight version chain check.
package legacy

import (
	"errors"
	"fmt"

	"github.com/lherron/ljmigrate/internal/db"
	"github.com/lherron/ljmigrate/internal/domain"
)

// DefaultTable is the legacy journal table name
const DefaultTable = "legacy_journals"

// Row is one legacy journal row with its changeset decoded
type Row struct {
	ID           int64
	JournaledID  int64
	Type         string
	Version      int64
	UserID       int64
	Notes        *string
	CreatedAt    any
	ActivityType *string
	ChangedData  domain.Attributes
}

// FromDB converts a raw legacy_journals row. Integer columns are coerced the
// same way for every driver and changed_data is decoded from YAML.
func FromDB(r db.Row) (Row, error) {
	var row Row
	var err error

	if row.ID, err = db.Int64(r["id"]); err != nil {
		return row, fmt.Errorf("legacy journal id: %w", err)
	}
	if row.JournaledID, err = db.Int64(r["journaled_id"]); err != nil {
		return row, fmt.Errorf("legacy journal %d: journaled_id: %w", row.ID, err)
	}
	if row.Version, err = db.Int64(r["version"]); err != nil {
		return row, fmt.Errorf("legacy journal %d: version: %w", row.ID, err)
	}
	if r["user_id"] != nil {
		if row.UserID, err = db.Int64(r["user_id"]); err != nil {
			return row, fmt.Errorf("legacy journal %d: user_id: %w", row.ID, err)
		}
	}

	row.Type = db.String(r["type"])
	if r["activity_type"] != nil {
		activity := db.String(r["activity_type"])
		row.ActivityType = &activity
	}
	row.CreatedAt = r["created_at"]
	if r["notes"] != nil {
		notes := db.String(r["notes"])
		row.Notes = &notes
	}

	row.ChangedData, err = domain.DecodeChangedData(db.String(r["changed_data"]))
	if err != nil {
		var unsupported *domain.UnsupportedLegacyValueError
		if errors.As(err, &unsupported) {
			unsupported.JournalID = row.ID
			return row, unsupported
		}
		return row, fmt.Errorf("legacy journal %d: %w", row.ID, err)
	}

	return row, nil
}
