package core

import (
	"encoding/json"
	"testing"
)

func TestValidID(t *testing.T) {
	testCases := []struct {
		id   string
		want bool
	}{
		{NewID(), true},
		{"64b7f0c2a1b2c3d4e5f60718", true},
		{"", false},
		{"not-an-id", false},
		{"64b7f0c2a1b2c3d4e5f6071", false},
		{"zzb7f0c2a1b2c3d4e5f60718", false},
	}

	for _, tc := range testCases {
		if got := ValidID(tc.id); got != tc.want {
			t.Errorf("ValidID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestCanonicalID(t *testing.T) {
	if got, ok := CanonicalID("64B7F0C2A1B2C3D4E5F60718"); !ok || got != "64b7f0c2a1b2c3d4e5f60718" {
		t.Errorf("CanonicalID(upper) = %q, %v", got, ok)
	}
	if _, ok := CanonicalID("not-an-id"); ok {
		t.Error("CanonicalID accepted a malformed id")
	}
}

func TestAdvertFilter_Matches(t *testing.T) {
	advert := &Advert{
		ID:          "64b7f0c2a1b2c3d4e5f60718",
		Title:       "Senior Engineer",
		Description: "Build backend services",
		Owner:       "u1",
	}

	testCases := []struct {
		name   string
		filter AdvertFilter
		want   bool
	}{
		{"empty filter", AdvertFilter{}, true},
		{"empty text match", AdvertFilter{Text: &TextMatch{}}, true},
		{"title case-insensitive", AdvertFilter{Text: &TextMatch{Title: "senior", Description: "zzz"}}, true},
		{"description only", AdvertFilter{Text: &TextMatch{Title: "zzz", Description: "BACKEND"}}, true},
		{"neither", AdvertFilter{Text: &TextMatch{Title: "zzz", Description: "yyy"}}, false},
		{"exact title", AdvertFilter{Title: "Senior Engineer", Owner: "u1"}, true},
		{"exact title is case-sensitive", AdvertFilter{Title: "senior engineer"}, false},
		{"other owner", AdvertFilter{ID: advert.ID, Owner: "u2"}, false},
		{"id and owner", AdvertFilter{ID: advert.ID, Owner: "u1"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(advert); got != tc.want {
				t.Errorf("Matches() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAdvert_JSONFlattensAttributes(t *testing.T) {
	advert := Advert{
		ID:       "64b7f0c2a1b2c3d4e5f60718",
		Title:    "Bar Manager",
		ImageURL: "https://cdn/x.jpg",
		Owner:    "u1",
		Attributes: Attributes{
			AttributeCompany: "Nightlife Ltd",
			AttributeJobType: "full-time",
		},
	}

	data, err := json.Marshal(advert)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() into map failed: %v", err)
	}
	if raw["company"] != "Nightlife Ltd" {
		t.Errorf("company = %v, want %q", raw["company"], "Nightlife Ltd")
	}
	if raw["jobType"] != "full-time" {
		t.Errorf("jobType = %v, want %q", raw["jobType"], "full-time")
	}
	if raw["imageUrl"] != "https://cdn/x.jpg" {
		t.Errorf("imageUrl = %v", raw["imageUrl"])
	}
	if _, ok := raw["Attributes"]; ok {
		t.Error("Attributes should not be serialized as a nested field")
	}

	var decoded Advert
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if decoded.Attributes[AttributeCompany] != "Nightlife Ltd" {
		t.Errorf("decoded company = %q", decoded.Attributes[AttributeCompany])
	}
	if _, ok := decoded.Attributes[AttributePrice]; ok {
		t.Error("price should be absent")
	}
}

func TestAdvert_AttributesCannotShadowCoreFields(t *testing.T) {
	advert := Advert{Title: "Real", Attributes: Attributes{"title": "Fake"}}

	data, err := json.Marshal(advert)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["title"] != "Real" {
		t.Errorf("title = %v, want Real", raw["title"])
	}
}

func TestAdvert_Clone(t *testing.T) {
	original := &Advert{Title: "a", Attributes: Attributes{AttributePrice: "10"}}
	clone := original.Clone()
	clone.Attributes[AttributePrice] = "20"

	if original.Attributes[AttributePrice] != "10" {
		t.Error("Clone() shares the attributes map")
	}
}

func TestHasAnyRole(t *testing.T) {
	u := &User{Roles: []string{RolePoster}}
	if !u.HasAnyRole(RoleVendor, RolePoster) {
		t.Error("expected poster to match")
	}
	if u.HasAnyRole(RoleAdmin) {
		t.Error("poster should not match admin")
	}
	if HasAnyRole(nil, RoleAdmin) {
		t.Error("no roles should never match")
	}
}
