package redis

import (
	"testing"
	"time"

	"github.com/artpar/entitled/domain/override"
)

// The encode/decode mapping and list ordering are pure; they are
// covered here without a Redis server. Store behavior against a live
// instance is exercised by the shared contract through the memory and
// sqlite adapters.

func TestEncodeDecode_RoundTrip(t *testing.T) {
	created := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	expiry := created.Add(48 * time.Hour)

	in := override.Override{
		ID:         "ov-1",
		UserID:     "u1",
		FeatureKey: "api_access",
		Enabled:    true,
		Reason:     "support ticket 1182",
		GrantedBy:  "admin-1",
		ExpiresAt:  &expiry,
		CreatedAt:  created,
		UpdatedAt:  created,
	}

	b, err := encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if out.ID != in.ID || out.UserID != in.UserID || out.FeatureKey != in.FeatureKey {
		t.Errorf("identity fields changed: %+v", out)
	}
	if !out.Enabled || out.Reason != in.Reason || out.GrantedBy != in.GrantedBy {
		t.Errorf("payload fields changed: %+v", out)
	}
	if out.ExpiresAt == nil || !out.ExpiresAt.Equal(expiry) {
		t.Errorf("ExpiresAt = %v, want %v", out.ExpiresAt, expiry)
	}
	if !out.CreatedAt.Equal(created) || !out.UpdatedAt.Equal(created) {
		t.Errorf("timestamps changed: %+v", out)
	}
}

func TestEncodeDecode_NilExpiry(t *testing.T) {
	in := override.Override{ID: "ov-2", UserID: "u1", FeatureKey: "f", Enabled: false,
		CreatedAt: time.Unix(0, 0).UTC(), UpdatedAt: time.Unix(0, 0).UTC()}

	b, err := encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ExpiresAt != nil {
		t.Errorf("nil expiry must stay nil, got %v", out.ExpiresAt)
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := decode([]byte("{not json")); err == nil {
		t.Errorf("expected error for malformed JSON")
	}
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	list := []override.Override{
		{FeatureKey: "b", CreatedAt: base},
		{FeatureKey: "a", CreatedAt: base},
		{FeatureKey: "c", CreatedAt: base.Add(time.Hour)},
	}

	sortNewestFirst(list)

	want := []string{"c", "a", "b"}
	for i, f := range want {
		if list[i].FeatureKey != f {
			t.Errorf("list[%d] = %s, want %s", i, list[i].FeatureKey, f)
		}
	}
}

func TestNewOverrideStore_DefaultPrefix(t *testing.T) {
	s := NewOverrideStore(nil, "")
	if got := s.key("u1"); got != "entitled:overrides:u1" {
		t.Errorf("key = %q, want default prefix", got)
	}

	s = NewOverrideStore(nil, "custom:")
	if got := s.key("u1"); got != "custom:u1" {
		t.Errorf("key = %q, want custom prefix", got)
	}
}
