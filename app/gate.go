package app

import (
	"context"
	"errors"

	"github.com/artpar/entitled/domain/entitlement"
	"github.com/artpar/entitled/domain/tier"
	"github.com/rs/zerolog"
)

// Identity is the caller the gate judges. Tier comes from the
// authenticated session upstream; the gate trusts it as given.
type Identity struct {
	UserID string
	Tier   tier.Tier
}

// GateResult is the gate's answer for one (identity, feature) pair.
// UpgradeTier names the cheapest tier that would flip a tier-based
// denial; it is empty for override denials and failures.
type GateResult struct {
	Allowed     bool
	Decision    entitlement.Decision
	UpgradeTier tier.Tier
}

// GateService is the enforcement boundary product code calls before
// serving a gated feature.
type GateService struct {
	resolver *ResolverService
	logger   zerolog.Logger
}

// NewGateService creates a GateService on top of a resolver.
func NewGateService(resolver *ResolverService, logger zerolog.Logger) *GateService {
	return &GateService{resolver: resolver, logger: logger}
}

// Check resolves access for ident to featureKey. A resolver outage is
// absorbed into a denial with ReasonResolverUnavailable rather than an
// error: the gate fails closed, and callers get a uniform deny path.
// An unknown tier still surfaces as tier.ErrUnknownTier because it is
// caller error, not infrastructure weather.
func (g *GateService) Check(ctx context.Context, ident Identity, featureKey string) (GateResult, error) {
	d, err := g.resolver.Resolve(ctx, ident.UserID, ident.Tier, featureKey)
	if errors.Is(err, ErrResolverUnavailable) {
		g.logger.Warn().
			Str("user_id", ident.UserID).
			Str("feature_key", featureKey).
			Msg("gate denying on resolver outage")
		return GateResult{
			Allowed: false,
			Decision: entitlement.Decision{
				Granted: false,
				Reason:  entitlement.ReasonResolverUnavailable,
				Tier:    ident.Tier,
			},
		}, nil
	}
	if err != nil {
		return GateResult{}, err
	}

	res := GateResult{Allowed: d.Granted, Decision: d}
	if !d.Granted && d.Reason == entitlement.ReasonTierInsufficient {
		res.UpgradeTier = d.RequiredTier
	}
	return res, nil
}
