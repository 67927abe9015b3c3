package override

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestActiveAt(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{"no expiry", nil, true},
		{"future expiry", &future, true},
		{"past expiry", &past, false},
		{"expires exactly now", &now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Override{ExpiresAt: tt.expiresAt}
			if got := o.ActiveAt(now); got != tt.want {
				t.Errorf("ActiveAt = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := Override{UserID: "u1", FeatureKey: "data_export", Enabled: true}
	if err := Validate(valid); err != nil {
		t.Errorf("expected valid override, got %v", err)
	}
}

func TestValidate_EmptyFields(t *testing.T) {
	tests := []struct {
		name string
		o    Override
		want []string
	}{
		{"empty user", Override{FeatureKey: "f"}, []string{"user_id"}},
		{"empty feature", Override{UserID: "u"}, []string{"feature_key"}},
		{"both empty", Override{}, []string{"user_id", "feature_key"}},
		{"whitespace only", Override{UserID: "  ", FeatureKey: "\t"}, []string{"user_id", "feature_key"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.o)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if len(verr.Fields) != len(tt.want) {
				t.Fatalf("got %d field errors %v, want %d", len(verr.Fields), verr.Fields, len(tt.want))
			}
			for i, f := range tt.want {
				if !strings.Contains(verr.Fields[i], f) {
					t.Errorf("field error %d = %q, want mention of %q", i, verr.Fields[i], f)
				}
			}
		})
	}
}

func TestMerge_PreservesIdentity(t *testing.T) {
	created := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(48 * time.Hour)
	expiry := created.Add(30 * 24 * time.Hour)

	prev := Override{
		ID:         "ov-1",
		UserID:     "u1",
		FeatureKey: "api_access",
		Enabled:    true,
		Reason:     "trial",
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	next := Override{
		ID:         "ov-ignored",
		UserID:     "u1",
		FeatureKey: "api_access",
		Enabled:    false,
		Reason:     "trial ended",
		GrantedBy:  "admin-2",
		ExpiresAt:  &expiry,
		CreatedAt:  updated, // must not win
		UpdatedAt:  updated,
	}

	got := Merge(prev, next)

	if got.ID != "ov-1" {
		t.Errorf("ID = %q, want original", got.ID)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want original %v", got.CreatedAt, created)
	}
	if got.Enabled {
		t.Errorf("Enabled should come from the replacement")
	}
	if got.Reason != "trial ended" || got.GrantedBy != "admin-2" {
		t.Errorf("mutable fields should come from the replacement, got %+v", got)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expiry) {
		t.Errorf("ExpiresAt should come from the replacement")
	}
	if !got.UpdatedAt.Equal(updated) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, updated)
	}
}
