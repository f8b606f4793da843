// Package adverts implements search, creation and owner-scoped mutation of
// adverts on top of a record store, an image store and an image generator.
package adverts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
	"github.com/FREEWORLD-HUB/group1-advertisement/locks"
	"github.com/FREEWORLD-HUB/group1-advertisement/metrics"
	"github.com/sirupsen/logrus"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

type (
	// Query selects adverts by case-insensitive substring of title OR description.
	Query struct {
		Title       string
		Description string
		Limit       int // 0 means the default limit
		Skip        int
	}

	Page struct {
		Limit int
		Skip  int
	}

	// Input is the caller-supplied content of a created or replaced advert.
	Input struct {
		Title       string
		Description string
		Category    string
		Attributes  core.Attributes
		// Image is optional; when nil one is generated from Title.
		Image *core.Image
	}

	Service struct {
		store     core.AdvertStore
		images    core.ImageStore
		generator core.ImageGenerator

		locker       locks.Locker
		publisher    core.EventPublisher
		metrics      *metrics.Metrics
		defaultLimit int
		maxLimit     int
		now          func() time.Time
	}

	Option func(*Service)
)

// WithLocker serializes creates per (title, owner). Defaults to locks.NewLocal().
func WithLocker(l locks.Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithPublisher(p core.EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLimits sets the default and maximum page size of searches.
func WithLimits(defaultLimit, maxLimit int) Option {
	return func(s *Service) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}
		if maxLimit >= s.defaultLimit {
			s.maxLimit = maxLimit
		}
	}
}

func New(store core.AdvertStore, images core.ImageStore, generator core.ImageGenerator, opts ...Option) *Service {
	s := &Service{
		store:        store,
		images:       images,
		generator:    generator,
		locker:       locks.NewLocal(),
		defaultLimit: DefaultLimit,
		maxLimit:     MaxLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns adverts in insertion order. Empty substrings match everything.
func (s *Service) Search(ctx context.Context, q Query) ([]*core.Advert, error) {
	limit, err := s.pageSize(q.Limit, q.Skip)
	if err != nil {
		s.record("search", err)
		return nil, err
	}

	filter := core.AdvertFilter{Text: &core.TextMatch{Title: q.Title, Description: q.Description}}
	adverts, err := s.store.Find(ctx, filter, limit, q.Skip)
	s.record("search", err)
	if err != nil {
		return nil, err
	}
	return adverts, nil
}

// Similar searches with the title and description of the advert id. The
// advert itself is part of the result.
func (s *Service) Similar(ctx context.Context, id string, page Page) ([]*core.Advert, error) {
	source, err := s.find(ctx, id)
	if err != nil {
		s.record("similar", err)
		return nil, err
	}
	limit, err := s.pageSize(page.Limit, page.Skip)
	if err != nil {
		s.record("similar", err)
		return nil, err
	}

	filter := core.AdvertFilter{Text: &core.TextMatch{Title: source.Title, Description: source.Description}}
	adverts, err := s.store.Find(ctx, filter, limit, page.Skip)
	s.record("similar", err)
	return adverts, err
}

func (s *Service) Get(ctx context.Context, id string) (*core.Advert, error) {
	advert, err := s.find(ctx, id)
	s.record("get", err)
	return advert, err
}

func (s *Service) find(ctx context.Context, id string) (*core.Advert, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}
	found, err := s.store.Find(ctx, core.AdvertFilter{ID: id}, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: advert %s", core.ErrNotFound, id)
	}
	return found[0], nil
}

// Create stores a new advert owned by owner. (title, owner) must be unused.
func (s *Service) Create(ctx context.Context, owner string, in Input) (*core.Advert, error) {
	advert, err := s.create(ctx, owner, in)
	s.record("create", err)
	return advert, err
}

func (s *Service) create(ctx context.Context, owner string, in Input) (*core.Advert, error) {
	if err := validate(owner, &in); err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"owner": owner, "title": in.Title})

	unlock, err := s.locker.Lock(ctx, lockKey(in.Title, owner))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire create lock: %w", err)
	}
	defer unlock()

	n, err := s.store.Count(ctx, core.AdvertFilter{Title: in.Title, Owner: owner})
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: advert already exists for this title and owner", core.ErrConflict)
	}

	imageURL, err := s.ProvisionImage(ctx, in.Title, in.Image)
	if err != nil {
		return nil, err
	}

	now := s.now()
	advert := &core.Advert{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Attributes:  in.Attributes,
		ImageURL:    imageURL,
		Owner:       owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.store.Insert(ctx, advert); err != nil {
		s.discardImage(imageURL)
		return nil, err
	}

	log.WithField("advert_id", advert.ID).Info("Advert added successfully")
	s.publish(core.EventAdvertCreated, advert)
	return advert, nil
}

// Replace overwrites the advert id if owner owns it. A missing advert and a
// foreign one both yield core.ErrNotFound.
func (s *Service) Replace(ctx context.Context, id, owner string, in Input) (*core.Advert, error) {
	advert, err := s.replace(ctx, id, owner, in)
	s.record("replace", err)
	return advert, err
}

func (s *Service) replace(ctx context.Context, id, owner string, in Input) (*core.Advert, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := validate(owner, &in); err != nil {
		return nil, err
	}

	imageURL, err := s.ProvisionImage(ctx, in.Title, in.Image)
	if err != nil {
		return nil, err
	}

	replacement := &core.Advert{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Attributes:  in.Attributes,
		ImageURL:    imageURL,
		UpdatedAt:   s.now(),
	}
	matched, err := s.store.ReplaceOne(ctx, core.AdvertFilter{ID: id, Owner: owner}, replacement)
	if err != nil {
		s.discardImage(imageURL)
		return nil, err
	}
	if matched == 0 {
		s.discardImage(imageURL)
		return nil, fmt.Errorf("%w: advert %s", core.ErrNotFound, id)
	}

	updated, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"advert_id": id, "owner": owner}).Info("Advert replaced successfully")
	s.publish(core.EventAdvertReplaced, updated)
	return updated, nil
}

// Delete removes the advert id if owner owns it. Its image is kept.
func (s *Service) Delete(ctx context.Context, id, owner string) error {
	err := s.delete(ctx, id, owner)
	s.record("delete", err)
	return err
}

func (s *Service) delete(ctx context.Context, id, owner string) error {
	id, err := parseID(id)
	if err != nil {
		return err
	}
	if owner == "" {
		return fmt.Errorf("%w: caller is required", core.ErrUnauthenticated)
	}

	deleted, err := s.store.DeleteOne(ctx, core.AdvertFilter{ID: id, Owner: owner})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("%w: advert %s", core.ErrNotFound, id)
	}

	logrus.WithFields(logrus.Fields{"advert_id": id, "owner": owner}).Info("Advert deleted successfully")
	s.publishEvent(core.AdvertEvent{Type: core.EventAdvertDeleted, ID: id, Owner: owner})
	return nil
}

// ProvisionImage uploads img, or generates one image from prompt and uploads
// that when img is nil. It returns the public URL.
func (s *Service) ProvisionImage(ctx context.Context, prompt string, img *core.Image) (string, error) {
	source := "upload"
	if img == nil {
		source = "generated"
		started := time.Now()
		generated, err := s.generator.Generate(ctx, prompt, 1)
		s.metrics.ObserveUpstream("generator", started)
		if err == nil && (len(generated) == 0 || len(generated[0]) == 0) {
			err = fmt.Errorf("%w: image generator returned no image", core.ErrUpstream)
		}
		if err != nil {
			s.metrics.RecordImage(source, err)
			return "", upstream(err)
		}
		img = &core.Image{Data: generated[0]}
	}

	started := time.Now()
	url, err := s.images.Upload(ctx, img)
	s.metrics.ObserveUpstream("image_store", started)
	if err == nil && url == "" {
		err = fmt.Errorf("%w: image store returned an empty url", core.ErrUpstream)
	}
	s.metrics.RecordImage(source, err)
	if err != nil {
		return "", upstream(err)
	}
	return url, nil
}

// discardImage removes an uploaded image whose advert was not persisted.
func (s *Service) discardImage(url string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.images.Delete(ctx, url); err != nil {
		logrus.WithError(err).WithField("image_url", url).Warn("Failed to remove orphaned image")
	}
}

func (s *Service) pageSize(limit, skip int) (int, error) {
	if limit < 0 || skip < 0 {
		return 0, fmt.Errorf("%w: limit and skip must not be negative", core.ErrValidation)
	}
	if limit == 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return limit, nil
}

func validate(owner string, in *Input) error {
	if owner == "" {
		return fmt.Errorf("%w: caller is required", core.ErrUnauthenticated)
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)

	var missing []string
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if in.Description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", core.ErrValidation, strings.Join(missing, " and "))
	}

	var attrs core.Attributes
	for key, value := range in.Attributes {
		if !core.IsAttributeKey(key) {
			return fmt.Errorf("%w: unknown field %q", core.ErrValidation, key)
		}
		if value = strings.TrimSpace(value); value != "" {
			if attrs == nil {
				attrs = core.Attributes{}
			}
			attrs[key] = value
		}
	}
	in.Attributes = attrs
	return nil
}

// parseID accepts any hex case and returns the stored lowercase form.
func parseID(id string) (string, error) {
	canonical, ok := core.CanonicalID(id)
	if !ok {
		return "", fmt.Errorf("%w: %q is not a valid advert id", core.ErrInvalidID, id)
	}
	return canonical, nil
}

func lockKey(title, owner string) string {
	return owner + "\x00" + title
}

// upstream marks provider errors as core.ErrUpstream unless they already are.
func upstream(err error) error {
	if errors.Is(err, core.ErrUpstream) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", core.ErrUpstream, err)
}

func (s *Service) publish(eventType string, advert *core.Advert) {
	s.publishEvent(core.AdvertEvent{Type: eventType, ID: advert.ID, Owner: advert.Owner, Advert: advert.Clone()})
}

func (s *Service) publishEvent(event core.AdvertEvent) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

func (s *Service) record(operation string, err error) {
	s.metrics.RecordOperation(operation, resultOf(err))
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrValidation):
		return "validation"
	case errors.Is(err, core.ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrConflict):
		return "conflict"
	case errors.Is(err, core.ErrUpstream):
		return "upstream"
	case errors.Is(err, core.ErrUnauthenticated), errors.Is(err, core.ErrForbidden):
		return "denied"
	default:
		return "error"
	}
}
