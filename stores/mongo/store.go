package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	advertsCollection = "adverts"
	usersCollection   = "users"
)

type mongoStore struct {
	client  *mongo.Client
	adverts *mongo.Collection
	users   *mongo.Collection
}

// NewStore connects to MongoDB and ensures the indexes used for uniqueness.
func NewStore(ctx context.Context, uri, database string) (*mongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	db := client.Database(database)
	s := &mongoStore{
		client:  client,
		adverts: db.Collection(advertsCollection),
		users:   db.Collection(usersCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	logrus.WithField("database", database).Debug("Mongo store ready")
	return s, nil
}

func (s *mongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.adverts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "title", Value: 1}, {Key: "owner", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("title_owner_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create advert index: %w", err)
	}

	// Partial indexes keep users without an email or subject out of the uniqueness check.
	_, err = s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email_lower", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique").
				SetPartialFilterExpression(bson.M{"email_lower": bson.M{"$type": "string"}}),
		},
		{
			Keys: bson.D{{Key: "subject", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("subject_unique").
				SetPartialFilterExpression(bson.M{"subject": bson.M{"$type": "string"}}),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func (s *mongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
