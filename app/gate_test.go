package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/entitled/adapters/clock"
	"github.com/artpar/entitled/adapters/memory"
	"github.com/artpar/entitled/domain/entitlement"
	"github.com/artpar/entitled/domain/tier"
	"github.com/rs/zerolog"
)

func TestGateAllowAndDeny(t *testing.T) {
	store := memory.NewOverrideStore()
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	gate := NewGateService(newTestResolver(t, store, clk), zerolog.Nop())

	res, err := gate.Check(context.Background(), Identity{UserID: "u1", Tier: tier.Elite}, "custom-domains")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Allowed {
		t.Error("elite user should pass the elite gate")
	}

	res, err = gate.Check(context.Background(), Identity{UserID: "u2", Tier: tier.Free}, "api-access")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Allowed {
		t.Error("free user should fail the pro gate")
	}
	if res.UpgradeTier != tier.Pro {
		t.Errorf("UpgradeTier = %q, want pro", res.UpgradeTier)
	}
}

func TestGateFailsClosedOnOutage(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	resolver := newTestResolver(t, &brokenStore{err: errors.New("timeout")}, clk)
	gate := NewGateService(resolver, zerolog.Nop())

	// Elite tier would trivially pass every gate, but with the store
	// down we cannot rule out an active deny-override, so the gate
	// refuses rather than guesses.
	res, err := gate.Check(context.Background(), Identity{UserID: "u1", Tier: tier.Elite}, "basic-export")
	if err != nil {
		t.Fatalf("outage must not surface as an error from the gate: %v", err)
	}
	if res.Allowed {
		t.Error("gate must deny when the resolver is unavailable")
	}
	if res.Decision.Reason != entitlement.ReasonResolverUnavailable {
		t.Errorf("reason = %q, want resolver-unavailable", res.Decision.Reason)
	}
	if res.UpgradeTier != "" {
		t.Errorf("UpgradeTier = %q, want empty on outage", res.UpgradeTier)
	}
}

func TestGatePropagatesUnknownTier(t *testing.T) {
	store := memory.NewOverrideStore()
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	gate := NewGateService(newTestResolver(t, store, clk), zerolog.Nop())

	_, err := gate.Check(context.Background(), Identity{UserID: "u1", Tier: tier.Tier("vip")}, "api-access")
	if !errors.Is(err, tier.ErrUnknownTier) {
		t.Fatalf("err = %v, want ErrUnknownTier", err)
	}
}
