// Package memory provides in-memory implementations of storage ports,
// used in tests and for ephemeral single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/artpar/entitled/domain/override"
	"github.com/artpar/entitled/ports"
)

type pairKey struct {
	userID     string
	featureKey string
}

// OverrideStore is an in-memory implementation of ports.OverrideStore.
// A single mutex serializes all writes; the replace-or-insert per pair
// is therefore trivially atomic.
type OverrideStore struct {
	mu     sync.RWMutex
	byPair map[pairKey]override.Override
	byUser map[string]map[string]struct{} // userID -> featureKey set
}

// NewOverrideStore creates a new in-memory override store.
func NewOverrideStore() *OverrideStore {
	return &OverrideStore{
		byPair: make(map[pairKey]override.Override),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Get returns the override for the pair regardless of expiration state.
func (s *OverrideStore) Get(ctx context.Context, userID, featureKey string) (override.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.byPair[pairKey{userID, featureKey}]
	if !ok {
		return override.Override{}, ports.ErrNotFound
	}
	return o, nil
}

// ListByUser returns the user's overrides, newest first.
func (s *OverrideStore) ListByUser(ctx context.Context, userID string) ([]override.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.byUser[userID]
	out := make([]override.Override, 0, len(keys))
	for fk := range keys {
		out = append(out, s.byPair[pairKey{userID, fk}])
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].FeatureKey < out[j].FeatureKey
	})
	return out, nil
}

// Upsert inserts or replaces the record for (UserID, FeatureKey).
func (s *OverrideStore) Upsert(ctx context.Context, o override.Override) (override.Override, error) {
	if err := override.Validate(o); err != nil {
		return override.Override{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{o.UserID, o.FeatureKey}
	if prev, ok := s.byPair[key]; ok {
		o = override.Merge(prev, o)
	}
	s.byPair[key] = o

	if s.byUser[o.UserID] == nil {
		s.byUser[o.UserID] = make(map[string]struct{})
	}
	s.byUser[o.UserID][o.FeatureKey] = struct{}{}

	return o, nil
}

// Delete removes the record for the pair.
func (s *OverrideStore) Delete(ctx context.Context, userID, featureKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{userID, featureKey}
	if _, ok := s.byPair[key]; !ok {
		return ports.ErrNotFound
	}
	delete(s.byPair, key)
	delete(s.byUser[userID], featureKey)
	if len(s.byUser[userID]) == 0 {
		delete(s.byUser, userID)
	}
	return nil
}

// Clear removes all overrides (for testing).
func (s *OverrideStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPair = make(map[pairKey]override.Override)
	s.byUser = make(map[string]map[string]struct{})
}

// Ensure interface compliance.
var _ ports.OverrideStore = (*OverrideStore)(nil)
