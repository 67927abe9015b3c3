// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/entitled/domain/override"
)

// ErrNotFound is returned by stores when no record matches.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability. The resolver never reads the
// wall clock directly; expiry checks use the time this interface hands
// out, so tests can replay any instant.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher provides credential hashing for the admin transport.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// OverrideStore persists per-user feature overrides, keyed by the
// (userID, featureKey) pair.
//
// The store is a faithful mirror of persisted state: Get and ListByUser
// return expired records unchanged; filtering expiry is the resolver's
// job. Upsert must be atomic per pair (replace-or-insert); writes to
// different pairs are independent. A replacement write keeps the
// original record's ID and CreatedAt (see override.Merge).
type OverrideStore interface {
	// Get returns the override for the pair, or ErrNotFound.
	Get(ctx context.Context, userID, featureKey string) (override.Override, error)

	// ListByUser returns all overrides for a user, newest first
	// (CreatedAt descending, FeatureKey ascending on ties).
	ListByUser(ctx context.Context, userID string) ([]override.Override, error)

	// Upsert inserts or atomically replaces the record for the pair and
	// returns what was stored.
	Upsert(ctx context.Context, o override.Override) (override.Override, error)

	// Delete removes the record for the pair; ErrNotFound if absent.
	Delete(ctx context.Context, userID, featureKey string) error
}
