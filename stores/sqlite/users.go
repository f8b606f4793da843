package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/sirupsen/logrus"
)

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *sqliteStore) CreateUser(ctx context.Context, u *core.User) error {
	if u.ID == "" {
		u.ID = core.NewID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	roles, err := json.Marshal(u.Roles)
	if err != nil {
		return fmt.Errorf("failed to marshal roles: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (id, subject, username, email, password_hash, roles, avatar_url, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		u.ID, nullable(u.Subject), u.Username, nullable(u.Email), u.PasswordHash, string(roles), u.AvatarURL, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user already exists", core.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	logrus.WithField("user_id", u.ID).Info("User created successfully")
	return nil
}

func (s *sqliteStore) FindUserByID(ctx context.Context, id string) (*core.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *sqliteStore) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return s.findUser(ctx, "email = ?", email)
}

func (s *sqliteStore) FindUserBySubject(ctx context.Context, subject string) (*core.User, error) {
	return s.findUser(ctx, "subject = ?", subject)
}

func (s *sqliteStore) findUser(ctx context.Context, cond string, value string) (*core.User, error) {
	var u core.User
	var subject, email sql.NullString
	var roles string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, subject, username, email, password_hash, roles, avatar_url, created_at FROM users WHERE "+cond, value).
		Scan(&u.ID, &subject, &u.Username, &email, &u.PasswordHash, &roles, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", core.ErrNotFound, value)
		}
		return nil, err
	}
	u.Subject = subject.String
	u.Email = email.String
	if err := json.Unmarshal([]byte(roles), &u.Roles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roles: %w", err)
	}
	return &u, nil
}
