package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Driver names returned by Connect.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ErrUnsupportedScheme indicates a database URL the platform cannot open.
var ErrUnsupportedScheme = errors.New("database: unsupported URL scheme")

// IsEmbedded reports whether a database URL points at an embedded engine.
// Embedded engines get their schema created directly instead of through
// incremental migration scripts.
func IsEmbedded(url string) bool {
	scheme := schemeOf(url)
	switch scheme {
	case "sqlite", "sqlite3", "file":
		return true
	default:
		return false
	}
}

// Connect opens the configured database and wraps it in a bun handle with
// the matching dialect. The returned driver name selects the migration
// strategy.
func Connect(url string, maxOpen, maxIdle int) (*bun.DB, string, error) {
	scheme := schemeOf(url)
	switch scheme {
	case "sqlite", "sqlite3", "file":
		dsn := sqliteDSN(url)
		sqlDB, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, "", fmt.Errorf("database: open sqlite: %w", err)
		}
		applyPool(sqlDB, maxOpen, maxIdle)
		return bun.NewDB(sqlDB, sqlitedialect.New()), DriverSQLite, nil
	case "postgres", "postgresql":
		sqlDB, err := sql.Open("postgres", url)
		if err != nil {
			return nil, "", fmt.Errorf("database: open postgres: %w", err)
		}
		applyPool(sqlDB, maxOpen, maxIdle)
		return bun.NewDB(sqlDB, pgdialect.New()), DriverPostgres, nil
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

func applyPool(db *sql.DB, maxOpen, maxIdle int) {
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
}

// sqliteDSN strips the sqlite:// style scheme prefix; file: DSNs pass
// through untouched because the driver understands them natively.
func sqliteDSN(url string) string {
	for _, prefix := range []string{"sqlite3://", "sqlite://"} {
		if strings.HasPrefix(url, prefix) {
			return strings.TrimPrefix(url, prefix)
		}
	}
	return url
}

func schemeOf(url string) string {
	trimmed := strings.TrimSpace(url)
	idx := strings.Index(trimmed, ":")
	if idx <= 0 {
		return ""
	}
	return strings.ToLower(trimmed[:idx])
}
