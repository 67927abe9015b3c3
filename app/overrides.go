package app

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/entitled/adapters/metrics"
	"github.com/artpar/entitled/domain/override"
	"github.com/artpar/entitled/ports"
	"github.com/rs/zerolog"
)

// UpsertRequest carries the caller-supplied fields of an override
// write. Enabled is a pointer because "unset" and "false" mean very
// different things on a deny record; an unset Enabled is rejected
// rather than defaulted.
type UpsertRequest struct {
	UserID     string
	FeatureKey string
	Enabled    *bool
	Reason     string
	GrantedBy  string
	ExpiresAt  *time.Time
}

// UpsertResult reports the stored record and whether the write created
// a new record or replaced an existing one.
type UpsertResult struct {
	Override override.Override
	Created  bool
}

// OverrideService is the admin-facing write path for per-user
// overrides.
type OverrideService struct {
	store   ports.OverrideStore
	clock   ports.Clock
	idgen   ports.IDGenerator
	logger  zerolog.Logger
	metrics *metrics.Collector
}

// OverrideDeps contains dependencies for OverrideService.
type OverrideDeps struct {
	Store   ports.OverrideStore
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  zerolog.Logger
	Metrics *metrics.Collector
}

// NewOverrideService creates an OverrideService.
func NewOverrideService(deps OverrideDeps) *OverrideService {
	return &OverrideService{
		store:   deps.Store,
		clock:   deps.Clock,
		idgen:   deps.IDGen,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
}

// Upsert writes an override for (UserID, FeatureKey). A fresh record
// gets a generated ID and creation timestamp; replacing an existing
// record keeps both and bumps only UpdatedAt. Validation failures
// return *override.ValidationError.
func (s *OverrideService) Upsert(ctx context.Context, req UpsertRequest) (UpsertResult, error) {
	if req.Enabled == nil {
		s.countWrite("invalid")
		return UpsertResult{}, &override.ValidationError{Fields: []string{"enabled must be set"}}
	}

	now := s.clock.Now().UTC()
	id := s.idgen.New()
	o := override.Override{
		ID:         id,
		UserID:     req.UserID,
		FeatureKey: req.FeatureKey,
		Enabled:    *req.Enabled,
		Reason:     req.Reason,
		GrantedBy:  req.GrantedBy,
		ExpiresAt:  req.ExpiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	start := time.Now()
	stored, err := s.store.Upsert(ctx, o)
	s.observe("upsert", start)
	if err != nil {
		var verr *override.ValidationError
		if errors.As(err, &verr) {
			s.countWrite("invalid")
		} else {
			s.countWrite("error")
		}
		return UpsertResult{}, err
	}

	// The store preserves the original ID on replacement, so seeing
	// our freshly generated ID back means the record is new.
	created := stored.ID == id
	if created {
		s.countWrite("created")
	} else {
		s.countWrite("replaced")
	}

	s.logger.Info().
		Str("user_id", stored.UserID).
		Str("feature_key", stored.FeatureKey).
		Bool("enabled", stored.Enabled).
		Bool("created", created).
		Str("granted_by", stored.GrantedBy).
		Msg("override upserted")

	return UpsertResult{Override: stored, Created: created}, nil
}

// Get returns the override for (userID, featureKey), expired or not.
// Absence is ports.ErrNotFound.
func (s *OverrideService) Get(ctx context.Context, userID, featureKey string) (override.Override, error) {
	start := time.Now()
	o, err := s.store.Get(ctx, userID, featureKey)
	s.observe("get", start)
	return o, err
}

// List returns every override for userID, newest first. Expired
// records are included; the caller annotates activeness against the
// service clock.
func (s *OverrideService) List(ctx context.Context, userID string) ([]override.Override, error) {
	start := time.Now()
	list, err := s.store.ListByUser(ctx, userID)
	s.observe("list", start)
	return list, err
}

// Delete removes the override for (userID, featureKey). Deleting an
// absent record is ports.ErrNotFound.
func (s *OverrideService) Delete(ctx context.Context, userID, featureKey string) error {
	start := time.Now()
	err := s.store.Delete(ctx, userID, featureKey)
	s.observe("delete", start)
	switch {
	case err == nil:
		s.countDelete("deleted")
		s.logger.Info().
			Str("user_id", userID).
			Str("feature_key", featureKey).
			Msg("override deleted")
	case errors.Is(err, ports.ErrNotFound):
		s.countDelete("not_found")
	default:
		s.countDelete("error")
	}
	return err
}

// Now exposes the service clock so transport layers can annotate
// activeness consistently with write timestamps.
func (s *OverrideService) Now() time.Time {
	return s.clock.Now()
}

func (s *OverrideService) countWrite(result string) {
	if s.metrics != nil {
		s.metrics.OverrideWrites.WithLabelValues(result).Inc()
	}
}

func (s *OverrideService) countDelete(result string) {
	if s.metrics != nil {
		s.metrics.OverrideDeletes.WithLabelValues(result).Inc()
	}
}

func (s *OverrideService) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
