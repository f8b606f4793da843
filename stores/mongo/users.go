package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type userDocument struct {
	ID           string    `bson:"_id"`
	Subject      *string   `bson:"subject,omitempty"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email,omitempty"`
	EmailLower   *string   `bson:"email_lower,omitempty"`
	PasswordHash string    `bson:"password_hash,omitempty"`
	Roles        []string  `bson:"roles"`
	AvatarURL    string    `bson:"avatar_url,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *mongoStore) CreateUser(ctx context.Context, u *core.User) error {
	if u.ID == "" {
		u.ID = core.NewID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	doc := userDocument{
		ID:           u.ID,
		Subject:      optional(u.Subject),
		Username:     u.Username,
		Email:        u.Email,
		EmailLower:   optional(strings.ToLower(u.Email)),
		PasswordHash: u.PasswordHash,
		Roles:        u.Roles,
		AvatarURL:    u.AvatarURL,
		CreatedAt:    u.CreatedAt,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: user already exists", core.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	logrus.WithField("user_id", u.ID).Info("User created successfully")
	return nil
}

func (s *mongoStore) FindUserByID(ctx context.Context, id string) (*core.User, error) {
	return s.findUser(ctx, bson.M{"_id": id}, id)
}

func (s *mongoStore) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return s.findUser(ctx, bson.M{"email_lower": strings.ToLower(email)}, email)
}

func (s *mongoStore) FindUserBySubject(ctx context.Context, subject string) (*core.User, error) {
	return s.findUser(ctx, bson.M{"subject": subject}, subject)
}

func (s *mongoStore) findUser(ctx context.Context, q bson.M, key string) (*core.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, q).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("%w: user %s", core.ErrNotFound, key)
		}
		return nil, err
	}

	u := &core.User{
		ID:           doc.ID,
		Username:     doc.Username,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Roles:        doc.Roles,
		AvatarURL:    doc.AvatarURL,
		CreatedAt:    doc.CreatedAt,
	}
	if doc.Subject != nil {
		u.Subject = *doc.Subject
	}
	return u, nil
}
