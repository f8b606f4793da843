package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

const advertColumns = "id, title, description, category, attributes, image_url, owner, created_at, updated_at"

// whereClause renders the filter with placeholders starting at $first.
func whereClause(f core.AdvertFilter, first int) (string, []any) {
	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", first+len(args)-1)
	}

	if f.ID != "" {
		conds = append(conds, "id = "+next(f.ID))
	}
	if f.Title != "" {
		conds = append(conds, "title = "+next(f.Title))
	}
	if f.Owner != "" {
		conds = append(conds, "owner = "+next(f.Owner))
	}
	if f.Text != nil {
		title := next(likePattern(f.Text.Title))
		description := next(likePattern(f.Text.Description))
		conds = append(conds, "(title ILIKE "+title+" OR description ILIKE "+description+")")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanAdvert(row pgx.CollectableRow) (*core.Advert, error) {
	var a core.Advert
	var attributes map[string]string
	if err := row.Scan(&a.ID, &a.Title, &a.Description, &a.Category, &attributes,
		&a.ImageURL, &a.Owner, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if len(attributes) > 0 {
		a.Attributes = core.Attributes(attributes)
	}
	return &a, nil
}

func (s *postgresStore) Find(ctx context.Context, filter core.AdvertFilter, limit, skip int) ([]*core.Advert, error) {
	where, args := whereClause(filter, 1)
	query := "SELECT " + advertColumns + " FROM adverts" + where + " ORDER BY seq"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}
	query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
	args = append(args, skip)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query adverts: %w", err)
	}
	adverts, err := pgx.CollectRows(rows, scanAdvert)
	if err != nil {
		return nil, fmt.Errorf("failed to scan adverts: %w", err)
	}
	if adverts == nil {
		adverts = []*core.Advert{}
	}
	return adverts, nil
}

func (s *postgresStore) Count(ctx context.Context, filter core.AdvertFilter) (int64, error) {
	where, args := whereClause(filter, 1)
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM adverts"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count adverts: %w", err)
	}
	return n, nil
}

func (s *postgresStore) Insert(ctx context.Context, advert *core.Advert) (string, error) {
	if advert.ID == "" {
		advert.ID = core.NewID()
	}
	now := time.Now()
	if advert.CreatedAt.IsZero() {
		advert.CreatedAt = now
	}
	if advert.UpdatedAt.IsZero() {
		advert.UpdatedAt = advert.CreatedAt
	}
	log := logrus.WithFields(logrus.Fields{"advert_id": advert.ID, "owner": advert.Owner})

	_, err := s.pool.Exec(ctx,
		"INSERT INTO adverts ("+advertColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		advert.ID, advert.Title, advert.Description, advert.Category, attributesOrEmpty(advert.Attributes),
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

func (s *postgresStore) ReplaceOne(ctx context.Context, filter core.AdvertFilter, advert *core.Advert) (int64, error) {
	updatedAt := advert.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	where, whereArgs := whereClause(filter, 7)
	args := append([]any{advert.Title, advert.Description, advert.Category,
		attributesOrEmpty(advert.Attributes), advert.ImageURL, updatedAt}, whereArgs...)

	tag, err := s.pool.Exec(ctx,
		"UPDATE adverts SET title = $1, description = $2, category = $3, attributes = $4, image_url = $5, updated_at = $6"+
			" WHERE seq = (SELECT seq FROM adverts"+where+" ORDER BY seq LIMIT 1)", args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: advert %q already exists for this owner", core.ErrConflict, advert.Title)
		}
		return 0, fmt.Errorf("failed to replace advert: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *postgresStore) DeleteOne(ctx context.Context, filter core.AdvertFilter) (int64, error) {
	where, args := whereClause(filter, 1)
	tag, err := s.pool.Exec(ctx, "DELETE FROM adverts WHERE seq = (SELECT seq FROM adverts"+where+" ORDER BY seq LIMIT 1)", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete advert: %w", err)
	}
	return tag.RowsAffected(), nil
}

// attributesOrEmpty keeps the JSONB column non-null; pgx encodes maps as JSON.
func attributesOrEmpty(attrs core.Attributes) map[string]string {
	if attrs == nil {
		return map[string]string{}
	}
	return attrs
}
