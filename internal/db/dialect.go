package db

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Dialect pairs a database/sql driver name with the sqlbuilder flavor that
// produces statements for it.
type Dialect struct {
	Driver string
	Flavor sqlbuilder.Flavor
}

// DialectFor returns the dialect for a driver name. "sqlite" and
// "postgresql" are accepted as aliases.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "sqlite":
		return Dialect{Driver: DriverSQLite, Flavor: sqlbuilder.SQLite}, nil
	case DriverPostgres, "postgresql":
		return Dialect{Driver: DriverPostgres, Flavor: sqlbuilder.PostgreSQL}, nil
	case DriverMySQL:
		return Dialect{Driver: DriverMySQL, Flavor: sqlbuilder.MySQL}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q: must be one of: %s, %s, %s", driver, DriverSQLite, DriverPostgres, DriverMySQL)
	}
}

// columnsQuery returns the introspection query listing a table's columns in
// ordinal order. The single placeholder is the table name.
func (d Dialect) columnsQuery() string {
	switch d.Driver {
	case DriverPostgres:
		return `SELECT column_name FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1
			ORDER BY ordinal_position`
	case DriverMySQL:
		return `SELECT column_name FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ?
			ORDER BY ordinal_position`
	default:
		return `SELECT name FROM pragma_table_info(?) ORDER BY cid`
	}
}
