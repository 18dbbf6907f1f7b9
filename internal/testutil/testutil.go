package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lherron/ljmigrate/internal/db"
)

// TempDB creates a temporary SQLite database with the rehearsal schema applied
func TempDB(t *testing.T) (*db.DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	database, err := db.Open(db.DriverSQLite, dbPath)
	require.NoError(t, err, "failed to create test database")

	if err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
	})

	return database, dbPath
}

// Legacy describes a legacy_journals row for seeding. Changes maps attribute
// names to [old, new] pairs and is stored as YAML, the way legacy rows are.
type Legacy struct {
	JournaledID  int64
	Type         string
	Version      int64
	UserID       int64
	Notes        string
	ActivityType string
	Changes      map[string][]any
}

// InsertLegacy inserts legacy rows and returns their ids in order
func InsertLegacy(t *testing.T, database *db.DB, rows ...Legacy) []int64 {
	t.Helper()

	created := time.Date(2012, 3, 4, 5, 6, 7, 0, time.UTC)
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		data, err := yaml.Marshal(r.Changes)
		require.NoError(t, err)

		var notes any
		if r.Notes != "" {
			notes = r.Notes
		}
		var activity any
		if r.ActivityType != "" {
			activity = r.ActivityType
		}

		res, err := database.Exec(`
			INSERT INTO legacy_journals (journaled_id, type, version, user_id, notes, created_at, activity_type, changed_data)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.JournaledID, r.Type, r.Version, r.UserID, notes, created, activity, string(data))
		require.NoError(t, err, "failed to insert legacy journal")

		id, err := res.LastInsertId()
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

// Query returns all rows of query through a session on the pool
func Query(t *testing.T, database *db.DB, query string, args ...any) []db.Row {
	t.Helper()
	rows, err := database.Session().SelectAll(context.Background(), query, args...)
	require.NoError(t, err)
	return rows
}

// Count returns the single integer produced by query
func Count(t *testing.T, database *db.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, database.QueryRow(query, args...).Scan(&n))
	return n
}

// ReadFile reads content from a file
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read file %s", path)
	return string(data)
}
