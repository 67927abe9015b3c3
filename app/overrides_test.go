package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/entitled/adapters/clock"
	"github.com/artpar/entitled/adapters/idgen"
	"github.com/artpar/entitled/adapters/memory"
	"github.com/artpar/entitled/domain/override"
	"github.com/artpar/entitled/ports"
	"github.com/rs/zerolog"
)

func newTestOverrideService(t *testing.T) (*OverrideService, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewOverrideService(OverrideDeps{
		Store:  memory.NewOverrideStore(),
		Clock:  clk,
		IDGen:  idgen.NewSequential("ov"),
		Logger: zerolog.Nop(),
	})
	return svc, clk
}

func boolPtr(b bool) *bool { return &b }

func TestOverrideUpsertCreates(t *testing.T) {
	svc, clk := newTestOverrideService(t)

	res, err := svc.Upsert(context.Background(), UpsertRequest{
		UserID:     "u1",
		FeatureKey: "api-access",
		Enabled:    boolPtr(true),
		Reason:     "beta trial",
		GrantedBy:  "admin@example.com",
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !res.Created {
		t.Error("first write should report created")
	}
	if res.Override.ID == "" {
		t.Error("new record must get a generated ID")
	}
	if !res.Override.CreatedAt.Equal(clk.Now().UTC()) {
		t.Errorf("CreatedAt = %v, want service clock", res.Override.CreatedAt)
	}
}

func TestOverrideUpsertReplacePreservesIdentity(t *testing.T) {
	svc, clk := newTestOverrideService(t)

	first, err := svc.Upsert(context.Background(), UpsertRequest{
		UserID:     "u1",
		FeatureKey: "api-access",
		Enabled:    boolPtr(true),
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	clk.Advance(time.Hour)
	second, err := svc.Upsert(context.Background(), UpsertRequest{
		UserID:     "u1",
		FeatureKey: "api-access",
		Enabled:    boolPtr(false),
		Reason:     "trial abuse",
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if second.Created {
		t.Error("replacement should not report created")
	}
	if second.Override.ID != first.Override.ID {
		t.Errorf("ID changed on replace: %q -> %q", first.Override.ID, second.Override.ID)
	}
	if !second.Override.CreatedAt.Equal(first.Override.CreatedAt) {
		t.Error("CreatedAt changed on replace")
	}
	if !second.Override.UpdatedAt.After(first.Override.UpdatedAt) {
		t.Error("UpdatedAt must advance on replace")
	}
	if second.Override.Enabled {
		t.Error("replacement payload not applied")
	}
}

func TestOverrideUpsertRequiresEnabled(t *testing.T) {
	svc, _ := newTestOverrideService(t)

	_, err := svc.Upsert(context.Background(), UpsertRequest{
		UserID:     "u1",
		FeatureKey: "api-access",
	})
	var verr *override.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestOverrideUpsertValidatesKeys(t *testing.T) {
	svc, _ := newTestOverrideService(t)

	_, err := svc.Upsert(context.Background(), UpsertRequest{
		UserID:     "   ",
		FeatureKey: "",
		Enabled:    boolPtr(true),
	})
	var verr *override.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(verr.Fields) != 2 {
		t.Errorf("fields = %v, want both keys flagged", verr.Fields)
	}
}

func TestOverrideDelete(t *testing.T) {
	svc, _ := newTestOverrideService(t)
	ctx := context.Background()

	if _, err := svc.Upsert(ctx, UpsertRequest{
		UserID:     "u1",
		FeatureKey: "api-access",
		Enabled:    boolPtr(true),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := svc.Delete(ctx, "u1", "api-access"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, "u1", "api-access"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(ctx, "u1", "api-access"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("Get after delete err = %v, want ErrNotFound", err)
	}
}

func TestOverrideListIncludesExpired(t *testing.T) {
	svc, clk := newTestOverrideService(t)
	ctx := context.Background()

	expires := clk.Now().Add(time.Minute)
	if _, err := svc.Upsert(ctx, UpsertRequest{
		UserID:     "u1",
		FeatureKey: "api-access",
		Enabled:    boolPtr(true),
		ExpiresAt:  &expires,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	clk.Advance(time.Hour)
	list, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expired record missing from list: %d entries", len(list))
	}
	if list[0].ActiveAt(svc.Now()) {
		t.Error("record should be inactive by now")
	}
}
