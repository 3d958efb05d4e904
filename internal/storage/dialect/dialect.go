// Package dialect abstracts the SQL differences between the supported
// result databases.
package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect represents a SQL database dialect.
type Dialect interface {
	// Name returns the dialect name ("sqlite" or "postgres").
	Name() string

	// DriverName returns the database/sql driver name to use.
	DriverName() string

	// Rebind converts ? placeholders to the dialect's format.
	Rebind(query string) string

	// IDColumn returns the column definition for a text primary key whose
	// value is generated by the database.
	IDColumn() string

	// TimestampType returns the SQL type for timestamps.
	TimestampType() string

	// CurrentTimestamp returns the SQL expression for the current time.
	CurrentTimestamp() string

	// PragmaStatements returns statements run once after connecting.
	PragmaStatements() []string
}

// DialectType represents supported database types.
type DialectType string

const (
	SQLite   DialectType = "sqlite"
	Postgres DialectType = "postgres"
)

// New creates a Dialect by type.
func New(dialectType DialectType) (Dialect, error) {
	switch dialectType {
	case SQLite:
		return sqliteDialect{}, nil
	case Postgres:
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialectType)
	}
}

// FromDriverName returns the dialect for a database/sql driver name.
func FromDriverName(driverName string) (Dialect, error) {
	switch strings.ToLower(driverName) {
	case "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driverName)
	}
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return "sqlite" }
func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) IDColumn() string {
	return "TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16))))"
}

func (sqliteDialect) TimestampType() string    { return "TIMESTAMP" }
func (sqliteDialect) CurrentTimestamp() string { return "CURRENT_TIMESTAMP" }

func (sqliteDialect) PragmaStatements() []string {
	return []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
}

type postgresDialect struct{}

func (postgresDialect) Name() string       { return "postgres" }
func (postgresDialect) DriverName() string { return "pgx" }

// Rebind converts ? placeholders to $1, $2, ... outside of quoted strings.
func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	idx := 1
	inQuote := false
	for _, ch := range query {
		switch {
		case ch == '\'':
			inQuote = !inQuote
			b.WriteRune(ch)
		case ch == '?' && !inQuote:
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(idx))
			idx++
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func (postgresDialect) IDColumn() string {
	return "TEXT PRIMARY KEY DEFAULT (gen_random_uuid()::text)"
}

func (postgresDialect) TimestampType() string    { return "TIMESTAMP WITH TIME ZONE" }
func (postgresDialect) CurrentTimestamp() string { return "now()" }

func (postgresDialect) PragmaStatements() []string { return nil }
