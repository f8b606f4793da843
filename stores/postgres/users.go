package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *postgresStore) CreateUser(ctx context.Context, u *core.User) error {
	if u.ID == "" {
		u.ID = core.NewID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}

	_, err := s.pool.Exec(ctx,
		"INSERT INTO users (id, subject, username, email, password_hash, roles, avatar_url, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		u.ID, nullable(u.Subject), u.Username, nullable(u.Email), u.PasswordHash, roles, u.AvatarURL, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user already exists", core.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	logrus.WithField("user_id", u.ID).Info("User created successfully")
	return nil
}

func (s *postgresStore) FindUserByID(ctx context.Context, id string) (*core.User, error) {
	return s.findUser(ctx, "id = $1", id)
}

func (s *postgresStore) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return s.findUser(ctx, "lower(email) = lower($1)", email)
}

func (s *postgresStore) FindUserBySubject(ctx context.Context, subject string) (*core.User, error) {
	return s.findUser(ctx, "subject = $1", subject)
}

func (s *postgresStore) findUser(ctx context.Context, cond, value string) (*core.User, error) {
	var u core.User
	var subject, email *string

	err := s.pool.QueryRow(ctx,
		"SELECT id, subject, username, email, password_hash, roles, avatar_url, created_at FROM users WHERE "+cond, value).
		Scan(&u.ID, &subject, &u.Username, &email, &u.PasswordHash, &u.Roles, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", core.ErrNotFound, value)
		}
		return nil, err
	}
	if subject != nil {
		u.Subject = *subject
	}
	if email != nil {
		u.Email = *email
	}
	return &u, nil
}
