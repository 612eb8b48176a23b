package userstore

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect abstracts the differences between the supported SQL backends.
// SQLite is the default for single-node deployments; Postgres is used
// when the credential store needs to be shared.
type Dialect interface {
	DriverName() string
	Placeholder(n int) string
	CreateSchema() string
}

// DialectFor returns the dialect for the configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite":
		return sqliteDialect{}, nil
	case "postgres":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported user db driver %q", driver)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) CreateSchema() string {
	return `CREATE TABLE IF NOT EXISTS users (
		username   TEXT PRIMARY KEY,
		email      TEXT NOT NULL,
		digest     TEXT NOT NULL,
		is_admin   INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`
}

type postgresDialect struct{}

func (postgresDialect) DriverName() string { return "pgx" }

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) CreateSchema() string {
	return `CREATE TABLE IF NOT EXISTS users (
		username   TEXT PRIMARY KEY,
		email      TEXT NOT NULL,
		digest     TEXT NOT NULL,
		is_admin   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	)`
}
