// Package app provides application services that orchestrate domain
// logic with store I/O.
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/artpar/entitled/adapters/metrics"
	"github.com/artpar/entitled/domain/entitlement"
	"github.com/artpar/entitled/domain/feature"
	"github.com/artpar/entitled/domain/override"
	"github.com/artpar/entitled/domain/tier"
	"github.com/artpar/entitled/ports"
	"github.com/rs/zerolog"
)

// ErrResolverUnavailable marks a resolve call that could not reach the
// override store. It is never downgraded into a decision here: treating
// an unreachable store as "no override" would silently turn an active
// deny-override into a grant. Callers choose the failure UX; the gate
// fails closed.
var ErrResolverUnavailable = errors.New("resolver unavailable")

// Snapshot is the immutable configuration the resolver reads per call.
type Snapshot struct {
	Catalog tier.Catalog
	Table   feature.Table
}

// ResolverService answers access-check queries. It holds no mutable
// state beyond the atomic config snapshot; any number of Resolve calls
// run in parallel.
type ResolverService struct {
	store   ports.OverrideStore
	clock   ports.Clock
	logger  zerolog.Logger
	metrics *metrics.Collector // nil disables instrumentation

	snapshot atomic.Pointer[Snapshot]
}

// ResolverDeps contains dependencies for ResolverService.
type ResolverDeps struct {
	Store   ports.OverrideStore
	Clock   ports.Clock
	Logger  zerolog.Logger
	Metrics *metrics.Collector
}

// NewResolverService creates a resolver with the initial catalog and
// requirement table.
func NewResolverService(deps ResolverDeps, catalog tier.Catalog, table feature.Table) *ResolverService {
	s := &ResolverService{
		store:   deps.Store,
		clock:   deps.Clock,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
	s.UpdateConfig(catalog, table)
	return s
}

// UpdateConfig swaps the catalog and requirement table. Thread-safe;
// in-flight Resolve calls keep the snapshot they already loaded.
func (s *ResolverService) UpdateConfig(catalog tier.Catalog, table feature.Table) {
	s.snapshot.Store(&Snapshot{Catalog: catalog, Table: table})
}

// Config returns the current snapshot.
func (s *ResolverService) Config() *Snapshot {
	return s.snapshot.Load()
}

// Resolve decides whether userID (at userTier) may use featureKey.
//
// Exactly one store read happens; its failure (including a context
// timeout or cancellation) surfaces as ErrResolverUnavailable and
// never as a decision. A userTier outside the closed set fails with
// tier.ErrUnknownTier before any I/O. The decision's "now" comes from
// the injected clock, so expiry is evaluated lazily and replayably.
func (s *ResolverService) Resolve(ctx context.Context, userID string, userTier tier.Tier, featureKey string) (entitlement.Decision, error) {
	snap := s.snapshot.Load()
	now := s.clock.Now()

	if _, err := snap.Catalog.RankOf(userTier); err != nil {
		s.countError()
		return entitlement.Decision{}, err
	}

	o, err := s.getOverride(ctx, userID, featureKey)
	if err != nil {
		s.countError()
		s.logger.Warn().Err(err).
			Str("user_id", userID).
			Str("feature_key", featureKey).
			Msg("override lookup failed, refusing to answer")
		return entitlement.Decision{}, fmt.Errorf("%w: %v", ErrResolverUnavailable, err)
	}

	d, err := entitlement.Resolve(o, userTier, featureKey, snap.Catalog, snap.Table, now)
	if err != nil {
		s.countError()
		return entitlement.Decision{}, err
	}

	if s.metrics != nil {
		s.metrics.DecisionsTotal.WithLabelValues(string(d.Reason), strconv.FormatBool(d.Granted)).Inc()
	}
	s.logger.Debug().
		Str("user_id", userID).
		Str("feature_key", featureKey).
		Str("tier", string(userTier)).
		Str("reason", string(d.Reason)).
		Bool("granted", d.Granted).
		Msg("access decision")

	return d, nil
}

// getOverride performs the single store read, mapping "absent" to nil.
func (s *ResolverService) getOverride(ctx context.Context, userID, featureKey string) (*override.Override, error) {
	start := time.Now()
	o, err := s.store.Get(ctx, userID, featureKey)
	s.observeStoreOp("get", start)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *ResolverService) countError() {
	if s.metrics != nil {
		s.metrics.ResolverErrors.Inc()
	}
}

func (s *ResolverService) observeStoreOp(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
