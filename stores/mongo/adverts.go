package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type advertDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Category    string             `bson:"category,omitempty"`
	Attributes  map[string]string  `bson:"attributes,omitempty"`
	ImageURL    string             `bson:"image_url"`
	Owner       string             `bson:"owner"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func toDocument(a *core.Advert) (*advertDocument, error) {
	oid, err := primitive.ObjectIDFromHex(a.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidID, a.ID)
	}
	return &advertDocument{
		ID:          oid,
		Title:       a.Title,
		Description: a.Description,
		Category:    a.Category,
		Attributes:  a.Attributes,
		ImageURL:    a.ImageURL,
		Owner:       a.Owner,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}, nil
}

func (d *advertDocument) toAdvert() *core.Advert {
	a := &core.Advert{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		ImageURL:    d.ImageURL,
		Owner:       d.Owner,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if len(d.Attributes) > 0 {
		a.Attributes = core.Attributes(d.Attributes)
	}
	return a
}

// containsPattern matches substr literally and case-insensitively.
func containsPattern(substr string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(substr), Options: "i"}
}

func toBSON(f core.AdvertFilter) (bson.M, error) {
	q := bson.M{}
	if f.ID != "" {
		oid, err := primitive.ObjectIDFromHex(f.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", core.ErrInvalidID, f.ID)
		}
		q["_id"] = oid
	}
	if f.Title != "" {
		q["title"] = f.Title
	}
	if f.Owner != "" {
		q["owner"] = f.Owner
	}
	if f.Text != nil {
		q["$or"] = bson.A{
			bson.M{"title": containsPattern(f.Text.Title)},
			bson.M{"description": containsPattern(f.Text.Description)},
		}
	}
	return q, nil
}

func (s *mongoStore) Find(ctx context.Context, filter core.AdvertFilter, limit, skip int) ([]*core.Advert, error) {
	q, err := toBSON(filter)
	if err != nil {
		return nil, err
	}

	// ObjectIDs start with a timestamp and a per-process counter, so _id order is insertion order.
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetSkip(int64(skip))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.adverts.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query adverts: %w", err)
	}
	defer cur.Close(ctx)

	adverts := []*core.Advert{}
	for cur.Next(ctx) {
		var doc advertDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode advert: %w", err)
		}
		adverts = append(adverts, doc.toAdvert())
	}
	return adverts, cur.Err()
}

func (s *mongoStore) Count(ctx context.Context, filter core.AdvertFilter) (int64, error) {
	q, err := toBSON(filter)
	if err != nil {
		return 0, err
	}
	n, err := s.adverts.CountDocuments(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to count adverts: %w", err)
	}
	return n, nil
}

func (s *mongoStore) Insert(ctx context.Context, advert *core.Advert) (string, error) {
	if advert.ID == "" {
		advert.ID = core.NewID()
	}
	doc, err := toDocument(advert)
	if err != nil {
		return "", err
	}
	log := logrus.WithFields(logrus.Fields{"advert_id": advert.ID, "owner": advert.Owner})

	if _, err := s.adverts.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%w: advert %q already exists for owner %s", core.ErrConflict, advert.Title, advert.Owner)
		}
		log.WithError(err).Error("Failed to create advert")
		return "", err
	}
	log.Info("Advert created successfully")
	return advert.ID, nil
}

func (s *mongoStore) ReplaceOne(ctx context.Context, filter core.AdvertFilter, advert *core.Advert) (int64, error) {
	q, err := toBSON(filter)
	if err != nil {
		return 0, err
	}
	updatedAt := advert.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	set := bson.M{
		"title":       advert.Title,
		"description": advert.Description,
		"category":    advert.Category,
		"image_url":   advert.ImageURL,
		"updated_at":  updatedAt,
	}
	update := bson.M{"$set": set}
	if len(advert.Attributes) > 0 {
		set["attributes"] = advert.Attributes
	} else {
		update["$unset"] = bson.M{"attributes": ""}
	}

	// _id, owner and created_at are left out of $set so they survive the replace.
	res, err := s.adverts.UpdateOne(ctx, q, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, fmt.Errorf("%w: advert %q already exists for this owner", core.ErrConflict, advert.Title)
		}
		return 0, fmt.Errorf("failed to replace advert: %w", err)
	}
	return res.MatchedCount, nil
}

func (s *mongoStore) DeleteOne(ctx context.Context, filter core.AdvertFilter) (int64, error) {
	q, err := toBSON(filter)
	if err != nil {
		return 0, err
	}
	res, err := s.adverts.DeleteOne(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to delete advert: %w", err)
	}
	return res.DeletedCount, nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
