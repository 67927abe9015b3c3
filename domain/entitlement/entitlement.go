// Package entitlement provides the access decision precedence rules as
// pure functions. All I/O (the override lookup) happens in the caller;
// given the same inputs this package always produces the same decision,
// which makes historical decisions replayable.
package entitlement

import (
	"time"

	"github.com/artpar/entitled/domain/feature"
	"github.com/artpar/entitled/domain/override"
	"github.com/artpar/entitled/domain/tier"
)

// Reason is the machine-readable explanation attached to a decision.
type Reason string

const (
	ReasonTierSufficient   Reason = "tier-sufficient"
	ReasonTierInsufficient Reason = "tier-insufficient"
	ReasonOverrideGrant    Reason = "override-grant"
	ReasonOverrideDeny     Reason = "override-deny"
	ReasonUnknownFeature   Reason = "unknown-feature-default-allow"

	// ReasonResolverUnavailable is produced by the access gate, never by
	// Resolve itself: it marks the fail-closed deny used when the
	// override store cannot be reached.
	ReasonResolverUnavailable Reason = "resolver-unavailable"
)

// Decision is the outcome of one access check. Ephemeral: computed per
// query, never persisted.
type Decision struct {
	Granted      bool
	Reason       Reason
	Tier         tier.Tier          // effective user tier the decision used
	RequiredTier tier.Tier          // set whenever the feature is registered; drives upgrade UX
	Override     *override.Override // record consulted, nil if none or expired
}

// Resolve applies the precedence algorithm:
//
//  1. An unexpired override wins in both directions. Overrides are
//     manual corrections to the tier system (trials, refunds, manual
//     suspensions) and must never be defeated by a purchased tier.
//  2. Unregistered features grant by policy (see feature.Table).
//  3. Otherwise the ranked tier comparison decides.
//
// o is the store's answer for (user, featureKey): nil when absent.
// Expired overrides are treated exactly like absent ones and are not
// reported on the decision. now is caller-supplied so the function
// stays deterministic.
func Resolve(o *override.Override, userTier tier.Tier, featureKey string, catalog tier.Catalog, table feature.Table, now time.Time) (Decision, error) {
	// Reject malformed tiers before anything else; a tier outside the
	// closed set is a caller bug, never silently coerced.
	if _, err := catalog.RankOf(userTier); err != nil {
		return Decision{}, err
	}

	if o != nil && o.ActiveAt(now) {
		d := Decision{
			Granted:  o.Enabled,
			Tier:     userTier,
			Override: o,
		}
		if o.Enabled {
			d.Reason = ReasonOverrideGrant
		} else {
			d.Reason = ReasonOverrideDeny
		}
		if required, registered := table.RequiredTierOf(featureKey); registered {
			d.RequiredTier = required
		}
		return d, nil
	}

	required, registered := table.RequiredTierOf(featureKey)
	if !registered {
		return Decision{
			Granted: true,
			Reason:  ReasonUnknownFeature,
			Tier:    userTier,
		}, nil
	}

	ok, err := catalog.Meets(userTier, required)
	if err != nil {
		return Decision{}, err
	}
	if ok {
		return Decision{
			Granted:      true,
			Reason:       ReasonTierSufficient,
			Tier:         userTier,
			RequiredTier: required,
		}, nil
	}
	return Decision{
		Granted:      false,
		Reason:       ReasonTierInsufficient,
		Tier:         userTier,
		RequiredTier: required,
	}, nil
}
