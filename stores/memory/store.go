package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/sirupsen/logrus"
)

// memStore implements AdvertStore and UserStore in process memory. It has no
// unique index: like a plain document collection, duplicates are only
// prevented by callers.
type memStore struct {
	mu sync.RWMutex
	// adverts keeps insertion order; deletes compact the slice.
	adverts []*core.Advert
	users   map[string]*core.User
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		users: make(map[string]*core.User),
	}
}

func (s *memStore) Find(ctx context.Context, filter core.AdvertFilter, limit, skip int) ([]*core.Advert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*core.Advert{}
	matched := 0
	for _, advert := range s.adverts {
		if !filter.Matches(advert) {
			continue
		}
		matched++
		if matched <= skip {
			continue
		}
		result = append(result, advert.Clone())
		if limit > 0 && len(result) == limit {
			break
		}
	}

	logrus.WithFields(logrus.Fields{"limit": limit, "skip": skip}).Debugf("Found %d adverts", len(result))
	return result, nil
}

func (s *memStore) Count(ctx context.Context, filter core.AdvertFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, advert := range s.adverts {
		if filter.Matches(advert) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) Insert(ctx context.Context, advert *core.Advert) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if advert.ID == "" {
		advert.ID = core.NewID()
	}
	for _, existing := range s.adverts {
		if existing.ID == advert.ID {
			return "", fmt.Errorf("%w: advert with id %s already exists", core.ErrConflict, advert.ID)
		}
	}

	s.adverts = append(s.adverts, advert.Clone())
	logrus.WithFields(logrus.Fields{"advert_id": advert.ID, "owner": advert.Owner}).Info("Advert created successfully")
	return advert.ID, nil
}

func (s *memStore) ReplaceOne(ctx context.Context, filter core.AdvertFilter, advert *core.Advert) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"advert_id": filter.ID, "owner": filter.Owner})
	for i, existing := range s.adverts {
		if !filter.Matches(existing) {
			continue
		}
		replacement := advert.Clone()
		replacement.ID = existing.ID
		replacement.Owner = existing.Owner
		replacement.CreatedAt = existing.CreatedAt
		if replacement.UpdatedAt.IsZero() {
			replacement.UpdatedAt = time.Now()
		}
		s.adverts[i] = replacement
		log.Info("Advert replaced successfully")
		return 1, nil
	}

	log.Warn("No advert matched for replacement")
	return 0, nil
}

func (s *memStore) DeleteOne(ctx context.Context, filter core.AdvertFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"advert_id": filter.ID, "owner": filter.Owner})
	for i, existing := range s.adverts {
		if !filter.Matches(existing) {
			continue
		}
		s.adverts = append(s.adverts[:i], s.adverts[i+1:]...)
		log.Info("Advert deleted successfully")
		return 1, nil
	}

	log.Warn("No advert matched for deletion")
	return 0, nil
}

func (s *memStore) Close() error {
	return nil
}

func (s *memStore) CreateUser(ctx context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if u.Email != "" && strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("%w: user with email %s already exists", core.ErrConflict, u.Email)
		}
		if u.Subject != "" && existing.Subject == u.Subject {
			return fmt.Errorf("%w: user with subject %s already exists", core.ErrConflict, u.Subject)
		}
	}

	if u.ID == "" {
		u.ID = core.NewID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	stored := *u
	stored.Roles = append([]string(nil), u.Roles...)
	s.users[u.ID] = &stored

	logrus.WithField("user_id", u.ID).Info("User created successfully")
	return nil
}

func (s *memStore) FindUserByID(ctx context.Context, id string) (*core.User, error) {
	return s.findUser(func(u *core.User) bool { return u.ID == id }, "id", id)
}

func (s *memStore) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return s.findUser(func(u *core.User) bool { return email != "" && strings.EqualFold(u.Email, email) }, "email", email)
}

func (s *memStore) FindUserBySubject(ctx context.Context, subject string) (*core.User, error) {
	return s.findUser(func(u *core.User) bool { return subject != "" && u.Subject == subject }, "subject", subject)
}

func (s *memStore) findUser(match func(*core.User) bool, field, value string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			found := *u
			found.Roles = append([]string(nil), u.Roles...)
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: user with %s %s", core.ErrNotFound, field, value)
}
