package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type postgresStore struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS adverts (
	seq BIGSERIAL UNIQUE,
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	attributes JSONB NOT NULL DEFAULT '{}',
	image_url TEXT NOT NULL,
	owner TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (title, owner)
);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	subject TEXT UNIQUE,
	username TEXT NOT NULL DEFAULT '',
	email TEXT,
	password_hash TEXT NOT NULL DEFAULT '',
	roles JSONB NOT NULL DEFAULT '[]',
	avatar_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower ON users (lower(email));`

// NewStore opens a pgx pool and creates the tables if missing.
func NewStore(ctx context.Context, dsn string) (*postgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logrus.Debug("Postgres store ready")
	return &postgresStore{pool}, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns a literal substring into an ILIKE pattern; '\' is the default escape.
func likePattern(substr string) string {
	return "%" + likeEscaper.Replace(substr) + "%"
}
