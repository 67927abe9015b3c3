// Package tier provides the subscription tier catalog and pure rank
// comparison functions. The tier set is closed: callers outside this
// package never invent tiers, they parse them.
package tier

import (
	"errors"
	"fmt"
)

// Tier identifies one subscription level.
type Tier string

const (
	Free  Tier = "free"
	Pro   Tier = "pro"
	Elite Tier = "elite"
)

// ErrUnknownTier is returned for any value outside the closed tier set.
// Hitting it means a caller bypassed ParseTier; treat as a programming
// error, not user input.
var ErrUnknownTier = errors.New("unknown tier")

// Info describes one tier for ranking and display.
type Info struct {
	Rank         int      // strictly increasing with privilege
	PriceMonthly int64    // cents
	Features     []string // display only, never used for enforcement
}

// Catalog maps each tier of the closed set to its Info.
// Immutable after construction; safe for concurrent reads.
type Catalog struct {
	entries map[Tier]Info
}

// Default returns the stock catalog.
func Default() Catalog {
	return Catalog{entries: map[Tier]Info{
		Free: {
			Rank:         0,
			PriceMonthly: 0,
			Features: []string{
				"Core dashboard",
				"Community support",
			},
		},
		Pro: {
			Rank:         1,
			PriceMonthly: 1900,
			Features: []string{
				"Everything in Free",
				"Advanced analytics",
				"Data export",
				"Email support",
			},
		},
		Elite: {
			Rank:         2,
			PriceMonthly: 4900,
			Features: []string{
				"Everything in Pro",
				"API access",
				"Custom reports",
				"Priority support",
			},
		},
	}}
}

// NewCatalog builds a catalog with per-tier price and display feature
// overrides. The tier set and rank ordering are fixed; overrides for
// tiers outside the closed set are rejected.
func NewCatalog(overrides map[Tier]Info) (Catalog, error) {
	c := Default()
	for t, info := range overrides {
		base, ok := c.entries[t]
		if !ok {
			return Catalog{}, fmt.Errorf("%w: %q", ErrUnknownTier, t)
		}
		// Rank is not overridable.
		base.PriceMonthly = info.PriceMonthly
		if info.Features != nil {
			base.Features = info.Features
		}
		c.entries[t] = base
	}
	return c, nil
}

// RankOf returns the numeric rank of t.
func (c Catalog) RankOf(t Tier) (int, error) {
	info, ok := c.entries[t]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, t)
	}
	return info.Rank, nil
}

// PriceOf returns the monthly price of t in cents.
func (c Catalog) PriceOf(t Tier) (int64, error) {
	info, ok := c.entries[t]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, t)
	}
	return info.PriceMonthly, nil
}

// FeaturesOf returns the display feature list of t.
func (c Catalog) FeaturesOf(t Tier) ([]string, error) {
	info, ok := c.entries[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTier, t)
	}
	return info.Features, nil
}

// Meets reports whether user's rank is at least required's rank.
// This is the single tier comparison used everywhere; call sites must
// not compare tier strings directly.
func (c Catalog) Meets(user, required Tier) (bool, error) {
	ur, err := c.RankOf(user)
	if err != nil {
		return false, err
	}
	rr, err := c.RankOf(required)
	if err != nil {
		return false, err
	}
	return ur >= rr, nil
}

// All returns the tiers in ascending rank order.
func All() []Tier {
	return []Tier{Free, Pro, Elite}
}

// ParseTier validates a raw string against the closed tier set.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case Free, Pro, Elite:
		return Tier(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

// Valid reports whether t belongs to the closed set.
func Valid(t Tier) bool {
	_, err := ParseTier(string(t))
	return err == nil
}
