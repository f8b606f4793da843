package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/sirupsen/logrus"
)

const advertColumns = "id, title, description, category, attributes, image_url, owner, created_at, updated_at"

func whereClause(f core.AdvertFilter) (string, []any) {
	var conds []string
	var args []any

	if f.ID != "" {
		conds = append(conds, "id = ?")
		args = append(args, f.ID)
	}
	if f.Title != "" {
		conds = append(conds, "title = ?")
		args = append(args, f.Title)
	}
	if f.Owner != "" {
		conds = append(conds, "owner = ?")
		args = append(args, f.Owner)
	}
	if f.Text != nil {
		// instr with an empty needle is 1, so an empty substring matches all.
		conds = append(conds, "(instr(fold(title), fold(?)) > 0 OR instr(fold(description), fold(?)) > 0)")
		args = append(args, f.Text.Title, f.Text.Description)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *sqliteStore) Find(ctx context.Context, filter core.AdvertFilter, limit, skip int) ([]*core.Advert, error) {
	where, args := whereClause(filter)
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, skip)

	rows, err := s.db.QueryContext(ctx, "SELECT "+advertColumns+" FROM adverts"+where+" ORDER BY rowid LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query adverts: %w", err)
	}
	defer rows.Close()

	adverts := []*core.Advert{}
	for rows.Next() {
		var advert core.Advert
		var attributes string
		if err := rows.Scan(&advert.ID, &advert.Title, &advert.Description, &advert.Category, &attributes,
			&advert.ImageURL, &advert.Owner, &advert.CreatedAt, &advert.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attributes), &advert.Attributes); err != nil {
			logrus.WithField("advert_id", advert.ID).WithError(err).Warn("Ignoring malformed advert attributes")
		}
		if len(advert.Attributes) == 0 {
			advert.Attributes = nil
		}
		adverts = append(adverts, &advert)
	}
	return adverts, rows.Err()
}

func (s *sqliteStore) Count(ctx context.Context, filter core.AdvertFilter) (int64, error) {
	where, args := whereClause(filter)
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM adverts"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count adverts: %w", err)
	}
	return n, nil
}

func (s *sqliteStore) Insert(ctx context.Context, advert *core.Advert) (string, error) {
	if advert.ID == "" {
		advert.ID = core.NewID()
	}
	attributes, err := marshalAttributes(advert.Attributes)
	if err != nil {
		return "", err
	}
	log := logrus.WithFields(logrus.Fields{"advert_id": advert.ID, "owner": advert.Owner})

	_, err = s.db.ExecContext(ctx, "INSERT INTO adverts ("+advertColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		advert.ID, advert.Title, advert.Description, advert.Category, attributes,
		advert.ImageURL, advert.Owner, advert.CreatedAt, advert.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: advert %q already exists for owner %s", core.ErrConflict, advert.Title, advert.Owner)
		}
		log.WithError(err).Error("Failed to create advert")
		return "", err
	}
	log.Info("Advert created successfully")
	return advert.ID, nil
}

func (s *sqliteStore) ReplaceOne(ctx context.Context, filter core.AdvertFilter, advert *core.Advert) (int64, error) {
	attributes, err := marshalAttributes(advert.Attributes)
	if err != nil {
		return 0, err
	}
	updatedAt := advert.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	where, whereArgs := whereClause(filter)
	args := append([]any{advert.Title, advert.Description, advert.Category, attributes, advert.ImageURL, updatedAt}, whereArgs...)
	res, err := s.db.ExecContext(ctx,
		"UPDATE adverts SET title = ?, description = ?, category = ?, attributes = ?, image_url = ?, updated_at = ?"+
			" WHERE rowid = (SELECT rowid FROM adverts"+where+" ORDER BY rowid LIMIT 1)", args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: advert %q already exists for this owner", core.ErrConflict, advert.Title)
		}
		return 0, fmt.Errorf("failed to replace advert: %w", err)
	}
	return res.RowsAffected()
}

func (s *sqliteStore) DeleteOne(ctx context.Context, filter core.AdvertFilter) (int64, error) {
	where, args := whereClause(filter)
	res, err := s.db.ExecContext(ctx, "DELETE FROM adverts WHERE rowid = (SELECT rowid FROM adverts"+where+" ORDER BY rowid LIMIT 1)", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete advert: %w", err)
	}
	return res.RowsAffected()
}

func marshalAttributes(attrs core.Attributes) (string, error) {
	if len(attrs) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal attributes: %w", err)
	}
	return string(data), nil
}
