package sqlite

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS adverts (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	attributes TEXT NOT NULL DEFAULT '{}',
	image_url TEXT NOT NULL,
	owner TEXT NOT NULL,
	created_at DATETIME,
	updated_at DATETIME,
	UNIQUE (title, owner)
);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	subject TEXT UNIQUE,
	username TEXT NOT NULL DEFAULT '',
	email TEXT UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL DEFAULT '',
	roles TEXT NOT NULL DEFAULT '[]',
	avatar_url TEXT NOT NULL DEFAULT '',
	created_at DATETIME
);`

// NewStore opens (or creates) the SQLite database and its tables.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logrus.WithField("dataSourceName", dataSourceName).Debug("SQLite store ready")
	return &sqliteStore{db}, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func init() {
	sqlite.MustRegisterDeterministicScalarFunction("fold", 1, fold)
}

// fold lowercases its argument with Go's Unicode case mapping. SQLite's own
// lower() and LIKE only fold ASCII letters.
func fold(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return fmt.Sprint(v), nil
	}
}
