package core

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attribute keys accepted on an advert besides the core fields.
const (
	AttributeCompany = "company"
	AttributePrice   = "price"
	AttributeJobType = "jobType"
)

// AttributeKeys lists every optional attribute an advert may carry.
var AttributeKeys = []string{AttributeCompany, AttributePrice, AttributeJobType}

// IsAttributeKey reports whether key is one of AttributeKeys.
func IsAttributeKey(key string) bool {
	for _, k := range AttributeKeys {
		if k == key {
			return true
		}
	}
	return false
}

type (
	// Attributes holds the category-specific optional fields of an advert.
	Attributes map[string]string

	// Advert is a listing owned by a single user.
	Advert struct {
		ID          string     `json:"id"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Category    string     `json:"category,omitempty"`
		Attributes  Attributes `json:"-"` // Flattened into the JSON object.
		ImageURL    string     `json:"imageUrl"`
		Owner       string     `json:"owner"`
		CreatedAt   time.Time  `json:"createdAt"`
		UpdatedAt   time.Time  `json:"updatedAt"`
	}

	// TextMatch selects adverts whose title contains Title OR whose description
	// contains Description, case-insensitively. An empty substring matches all.
	TextMatch struct {
		Title       string
		Description string
	}

	// AdvertFilter is ANDed over its non-empty exact fields and Text.
	AdvertFilter struct {
		ID    string
		Title string
		Owner string
		Text  *TextMatch
	}

	// AdvertStore is the record store for adverts.
	AdvertStore interface {
		// Find returns matching adverts in insertion order. limit <= 0 means no limit.
		Find(ctx context.Context, filter AdvertFilter, limit, skip int) ([]*Advert, error)

		// Count returns the number of matching adverts.
		Count(ctx context.Context, filter AdvertFilter) (int64, error)

		// Insert stores a new advert, assigning its ID when empty.
		Insert(ctx context.Context, advert *Advert) (string, error)

		// ReplaceOne overwrites the first matching advert with advert's fields,
		// keeping the stored ID, Owner and CreatedAt. Returns the matched count.
		ReplaceOne(ctx context.Context, filter AdvertFilter, advert *Advert) (int64, error)

		// DeleteOne removes the first matching advert. Returns the matched count.
		DeleteOne(ctx context.Context, filter AdvertFilter) (int64, error)

		Close() error
	}
)

// NewID returns a fresh advert identifier.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id has the advert identifier format.
func ValidID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

// CanonicalID returns id in the lowercase form NewID produces, and whether
// it is a valid identifier at all.
func CanonicalID(id string) (string, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return "", false
	}
	return oid.Hex(), true
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Matches evaluates the filter against a single advert.
func (f AdvertFilter) Matches(a *Advert) bool {
	if f.ID != "" && a.ID != f.ID {
		return false
	}
	if f.Title != "" && a.Title != f.Title {
		return false
	}
	if f.Owner != "" && a.Owner != f.Owner {
		return false
	}
	if f.Text != nil {
		return ContainsFold(a.Title, f.Text.Title) || ContainsFold(a.Description, f.Text.Description)
	}
	return true
}

// Clone returns a deep copy of the advert.
func (a *Advert) Clone() *Advert {
	c := *a
	if a.Attributes != nil {
		c.Attributes = make(Attributes, len(a.Attributes))
		for k, v := range a.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}

func (a Advert) MarshalJSON() ([]byte, error) {
	type plain Advert
	base, err := json.Marshal(plain(a))
	if err != nil || len(a.Attributes) == 0 {
		return base, err
	}

	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range a.Attributes {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func (a *Advert) UnmarshalJSON(data []byte) error {
	type plain Advert
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range AttributeKeys {
		msg, ok := raw[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(msg, &value); err != nil || value == "" {
			continue
		}
		if p.Attributes == nil {
			p.Attributes = Attributes{}
		}
		p.Attributes[key] = value
	}

	*a = Advert(p)
	return nil
}
