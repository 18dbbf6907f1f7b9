// Package strategy holds the per-type migration strategies: which unified
// data table a legacy journal type lands in and which fix-ups run on its
// column values before the row is written.
package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/lherron/ljmigrate/internal/db"
	"github.com/lherron/ljmigrate/internal/legacy"
)

// HookContext is what a hook may consult while editing a row's pairs
type HookContext struct {
	Session *db.Session
	Row     legacy.Row
	// JournalID is the id of the unified journal header of Row
	JournalID int64
}

// KeyValueHook edits the projected pairs of one data row. It may read and
// write the database through the session, for example to maintain link
// tables.
type KeyValueHook func(ctx context.Context, hc HookContext, kv *KeyValues) error

// Migrator is the strategy for one legacy journal type
type Migrator struct {
	// Type is the journable_data_type written to the header
	Type string
	// Table is the type-specific journal data table
	Table string
	// EntityClass is the journable_type of the header: Type without the
	// trailing "Journal"
	EntityClass string
	Hook        KeyValueHook
	// Claims reports keys the hook consumes although they are not columns
	// of Table
	Claims func(key string) bool
}

// Option configures a Migrator
type Option func(*Migrator)

// WithHook sets the key/value hook
func WithHook(hook KeyValueHook) Option {
	return func(m *Migrator) {
		m.Hook = hook
	}
}

// WithClaims sets the predicate for keys the hook consumes
func WithClaims(claims func(key string) bool) Option {
	return func(m *Migrator) {
		m.Claims = claims
	}
}

// NewMigrator creates a strategy for typ writing into table
func NewMigrator(typ, table string, opts ...Option) (*Migrator, error) {
	if strings.TrimSpace(typ) == "" {
		return nil, fmt.Errorf("migrator type is required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("migrator table is required for %s", typ)
	}

	m := &Migrator{
		Type:        typ,
		Table:       table,
		EntityClass: strings.TrimSuffix(typ, "Journal"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Claimed reports whether key must survive projection for the hook
func (m *Migrator) Claimed(key string) bool {
	return m.Claims != nil && m.Claims(key)
}

// RunHook runs the migrator's hook; a migrator without one leaves kv as is
func (m *Migrator) RunHook(ctx context.Context, hc HookContext, kv *KeyValues) error {
	if m.Hook == nil {
		return nil
	}
	return m.Hook(ctx, hc, kv)
}

// MapKey maps a legacy attribute name to its unified column name
func MapKey(key string) string {
	switch key {
	case "issue_id":
		return "work_package_id"
	default:
		return key
	}
}
