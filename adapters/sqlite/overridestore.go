package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/artpar/entitled/domain/override"
	"github.com/artpar/entitled/ports"
)

// OverrideStore implements ports.OverrideStore with SQLite.
// The (user_id, feature_key) primary key plus ON CONFLICT upserts give
// the per-pair atomic replace-or-insert the contract requires; SQLite
// serializes the conflicting writers.
type OverrideStore struct {
	db *DB
}

// NewOverrideStore creates a new SQLite override store.
func NewOverrideStore(db *DB) *OverrideStore {
	return &OverrideStore{db: db}
}

const overrideColumns = `id, user_id, feature_key, enabled, reason, granted_by, expires_at, created_at, updated_at`

// Get retrieves the override for the pair, expired or not.
func (s *OverrideStore) Get(ctx context.Context, userID, featureKey string) (override.Override, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+overrideColumns+`
		FROM overrides WHERE user_id = ? AND feature_key = ?
	`, userID, featureKey)

	o, err := scanOverride(row)
	if errors.Is(err, sql.ErrNoRows) {
		return override.Override{}, ports.ErrNotFound
	}
	return o, err
}

// ListByUser returns the user's overrides, newest first.
func (s *OverrideStore) ListByUser(ctx context.Context, userID string) ([]override.Override, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+overrideColumns+`
		FROM overrides WHERE user_id = ?
		ORDER BY created_at DESC, feature_key ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []override.Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Upsert inserts or atomically replaces the record for the pair.
// The existing row's id and created_at win on conflict, matching
// override.Merge semantics.
func (s *OverrideStore) Upsert(ctx context.Context, o override.Override) (override.Override, error) {
	if err := override.Validate(o); err != nil {
		return override.Override{}, err
	}

	var expiresAt sql.NullTime
	if o.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *o.ExpiresAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO overrides (`+overrideColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, feature_key) DO UPDATE SET
			enabled    = excluded.enabled,
			reason     = excluded.reason,
			granted_by = excluded.granted_by,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, o.ID, o.UserID, o.FeatureKey, o.Enabled, o.Reason, o.GrantedBy,
		expiresAt, o.CreatedAt.UTC(), o.UpdatedAt.UTC())
	if err != nil {
		return override.Override{}, err
	}

	// Read back so the caller sees the preserved id/created_at after a
	// replacement.
	return s.Get(ctx, o.UserID, o.FeatureKey)
}

// Delete removes the record for the pair.
func (s *OverrideStore) Delete(ctx context.Context, userID, featureKey string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM overrides WHERE user_id = ? AND feature_key = ?
	`, userID, featureKey)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOverride(row rowScanner) (override.Override, error) {
	var o override.Override
	var expiresAt sql.NullTime
	if err := row.Scan(
		&o.ID, &o.UserID, &o.FeatureKey, &o.Enabled, &o.Reason, &o.GrantedBy,
		&expiresAt, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return override.Override{}, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		o.ExpiresAt = &t
	}
	return o, nil
}

// Ensure interface compliance.
var _ ports.OverrideStore = (*OverrideStore)(nil)
