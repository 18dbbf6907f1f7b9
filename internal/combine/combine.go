// Package combine folds legacy per-version changesets into cumulative
// snapshots. Legacy rows store only the attributes that changed in their
// version; the unified journals hold the complete state at every version.
package combine

import (
	"github.com/lherron/ljmigrate/internal/domain"
	"github.com/lherron/ljmigrate/internal/legacy"
)

// State is the combiner's memory between rows: the entity and type of the
// previous row and its cumulative attributes. The zero value matches no row.
type State struct {
	JournaledID int64
	Type        string
	Merged      domain.Attributes
}

// Combine returns the cumulative attributes for row and the state to pass
// with the next row. When row continues the previous entity chain the
// previous snapshot is overlaid with row's changes, otherwise the snapshot
// starts over from row's changes. Neither input is modified.
func Combine(state State, row legacy.Row) (State, domain.Attributes) {
	var merged domain.Attributes
	if state.Merged != nil && row.JournaledID == state.JournaledID && row.Type == state.Type {
		merged = state.Merged.Clone()
		for k, v := range row.ChangedData {
			merged[k] = v
		}
	} else {
		merged = row.ChangedData.Clone()
	}

	next := State{
		JournaledID: row.JournaledID,
		Type:        row.Type,
		Merged:      merged.Clone(),
	}
	return next, merged
}

// Snapshots combines rows in order and returns one snapshot per row
func Snapshots(rows []legacy.Row) []domain.Attributes {
	var state State
	out := make([]domain.Attributes, 0, len(rows))
	for _, row := range rows {
		var merged domain.Attributes
		state, merged = Combine(state, row)
		out = append(out, merged)
	}
	return out
}
