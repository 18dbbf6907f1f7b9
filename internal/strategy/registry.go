package strategy

import (
	"fmt"
	"sort"
)

// Registry maps legacy journal type names to migrators. Several names may
// share one migrator.
type Registry struct {
	migrators map[string]*Migrator
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{migrators: make(map[string]*Migrator)}
}

// Register maps legacyType to m
func (r *Registry) Register(legacyType string, m *Migrator) error {
	if m == nil {
		return fmt.Errorf("nil migrator for %s", legacyType)
	}
	if _, exists := r.migrators[legacyType]; exists {
		return fmt.Errorf("migrator for %s already registered", legacyType)
	}
	r.migrators[legacyType] = m
	return nil
}

// Resolve returns the migrator for legacyType. Unknown types are not an
// error; the caller skips them.
func (r *Registry) Resolve(legacyType string) (*Migrator, bool) {
	m, ok := r.migrators[legacyType]
	return m, ok
}

// Types returns the registered legacy type names in sorted order
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.migrators))
	for t := range r.migrators {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Tables returns the distinct data tables of the registered migrators
func (r *Registry) Tables() []string {
	seen := make(map[string]bool)
	var tables []string
	for _, m := range r.migrators {
		if !seen[m.Table] {
			seen[m.Table] = true
			tables = append(tables, m.Table)
		}
	}
	sort.Strings(tables)
	return tables
}

// DefaultRegistry returns the registry for the legacy journal types
func DefaultRegistry() *Registry {
	r := NewRegistry()

	workPackage := mustMigrator("WorkPackageJournal", "work_package_journals",
		WithHook(WorkPackageHook), WithClaims(WorkPackageClaims))

	entries := []struct {
		legacyType string
		migrator   *Migrator
	}{
		{"AttachmentJournal", mustMigrator("AttachmentJournal", "attachment_journals")},
		{"ChangesetJournal", mustMigrator("ChangesetJournal", "changeset_journals")},
		{"NewsJournal", mustMigrator("NewsJournal", "news_journals")},
		{"MessageJournal", mustMigrator("MessageJournal", "message_journals")},
		{"WorkPackageJournal", workPackage},
		{"IssueJournal", workPackage},
		{"Timelines_PlanningElementJournal", workPackage},
		{"TimeEntryJournal", mustMigrator("TimeEntryJournal", "time_entry_journals")},
		{"WikiContentJournal", mustMigrator("WikiContentJournal", "wiki_content_journals",
			WithHook(WikiContentHook), WithClaims(WikiContentClaims))},
	}
	for _, e := range entries {
		if err := r.Register(e.legacyType, e.migrator); err != nil {
			panic(err)
		}
	}
	return r
}

func mustMigrator(typ, table string, opts ...Option) *Migrator {
	m, err := NewMigrator(typ, table, opts...)
	if err != nil {
		panic(err)
	}
	return m
}
