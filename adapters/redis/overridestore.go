// Package redis provides a Redis-backed override store. Records live in
// one hash per user (field = feature key, value = JSON), so replacing a
// pair is a single HSET and stays atomic per pair.
package redis

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/artpar/entitled/domain/override"
	"github.com/artpar/entitled/ports"
	"github.com/redis/go-redis/v9"
)

// OverrideStore implements ports.OverrideStore on Redis.
type OverrideStore struct {
	rdb   *redis.Client
	keyNS string
}

// NewOverrideStore creates a Redis override store. keyPrefix defaults
// to "entitled:overrides:".
func NewOverrideStore(rdb *redis.Client, keyPrefix string) *OverrideStore {
	if keyPrefix == "" {
		keyPrefix = "entitled:overrides:"
	}
	return &OverrideStore{rdb: rdb, keyNS: keyPrefix}
}

func (s *OverrideStore) key(userID string) string { return s.keyNS + userID }

// record is the persisted JSON shape. Kept separate from the domain
// type so stored data does not silently change when the domain does.
type record struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	FeatureKey string     `json:"feature_key"`
	Enabled    bool       `json:"enabled"`
	Reason     string     `json:"reason,omitempty"`
	GrantedBy  string     `json:"granted_by,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func encode(o override.Override) ([]byte, error) {
	return json.Marshal(record{
		ID:         o.ID,
		UserID:     o.UserID,
		FeatureKey: o.FeatureKey,
		Enabled:    o.Enabled,
		Reason:     o.Reason,
		GrantedBy:  o.GrantedBy,
		ExpiresAt:  o.ExpiresAt,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	})
}

func decode(b []byte) (override.Override, error) {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return override.Override{}, err
	}
	return override.Override{
		ID:         r.ID,
		UserID:     r.UserID,
		FeatureKey: r.FeatureKey,
		Enabled:    r.Enabled,
		Reason:     r.Reason,
		GrantedBy:  r.GrantedBy,
		ExpiresAt:  r.ExpiresAt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

// Get returns the override for the pair, expired or not.
func (s *OverrideStore) Get(ctx context.Context, userID, featureKey string) (override.Override, error) {
	val, err := s.rdb.HGet(ctx, s.key(userID), featureKey).Bytes()
	if err == redis.Nil {
		return override.Override{}, ports.ErrNotFound
	}
	if err != nil {
		return override.Override{}, err
	}
	return decode(val)
}

// ListByUser returns the user's overrides, newest first.
func (s *OverrideStore) ListByUser(ctx context.Context, userID string) ([]override.Override, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]override.Override, 0, len(vals))
	for _, v := range vals {
		o, err := decode([]byte(v))
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(out []override.Override) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].FeatureKey < out[j].FeatureKey
	})
}

// Upsert inserts or replaces the record for the pair. The read-merge-
// write runs under WATCH so a concurrent writer to the same pair
// retries instead of clobbering the preserved id/created_at.
func (s *OverrideStore) Upsert(ctx context.Context, o override.Override) (override.Override, error) {
	if err := override.Validate(o); err != nil {
		return override.Override{}, err
	}

	key := s.key(o.UserID)
	var stored override.Override

	txn := func(tx *redis.Tx) error {
		prev, err := tx.HGet(ctx, key, o.FeatureKey).Bytes()
		switch {
		case err == redis.Nil:
			stored = o
		case err != nil:
			return err
		default:
			prevO, derr := decode(prev)
			if derr != nil {
				return derr
			}
			stored = override.Merge(prevO, o)
		}

		b, err := encode(stored)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, o.FeatureKey, b)
			return nil
		})
		return err
	}

	// Bounded retries on write contention for the same pair.
	for i := 0; i < 5; i++ {
		err := s.rdb.Watch(ctx, txn, key)
		if err == nil {
			return stored, nil
		}
		if err != redis.TxFailedErr {
			return override.Override{}, err
		}
	}
	return override.Override{}, redis.TxFailedErr
}

// Delete removes the record for the pair.
func (s *OverrideStore) Delete(ctx context.Context, userID, featureKey string) error {
	n, err := s.rdb.HDel(ctx, s.key(userID), featureKey).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Ensure interface compliance.
var _ ports.OverrideStore = (*OverrideStore)(nil)
