// Package override provides the per-user feature override value type
// and its pure validation and expiry rules.
package override

import (
	"fmt"
	"strings"
	"time"
)

// Override is an administrative exception to tier-based access for one
// (user, feature) pair. Enabled=true grants the feature regardless of
// tier; Enabled=false revokes it regardless of tier. At most one record
// exists per pair; writes replace the whole record.
type Override struct {
	ID         string     // storage identity, assigned on first write
	UserID     string
	FeatureKey string
	Enabled    bool
	Reason     string     // audit note, free text
	GrantedBy  string     // identifier of the administrator
	ExpiresAt  *time.Time // nil = never expires
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ActiveAt reports whether the override affects decisions at the given
// instant. Expiry is evaluated here, at read time; expired records stay
// in storage until deleted but are inert.
func (o Override) ActiveAt(now time.Time) bool {
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}

// ValidationError reports structurally invalid override fields. It is
// surfaced verbatim to the administrative caller.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid override: %s", strings.Join(e.Fields, ", "))
}

// Validate checks structural well-formedness: non-blank user and
// feature identifiers. Who is allowed to write overrides is not this
// package's concern.
func Validate(o Override) error {
	var fields []string
	if strings.TrimSpace(o.UserID) == "" {
		fields = append(fields, "user_id must not be empty")
	}
	if strings.TrimSpace(o.FeatureKey) == "" {
		fields = append(fields, "feature_key must not be empty")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Merge applies a replacement write onto an existing record, keeping
// the identity fields the upsert contract preserves: ID, UserID,
// FeatureKey and CreatedAt come from prev; everything else comes from
// next. This is a PURE function; stores call it so all three adapters
// agree on replacement semantics.
func Merge(prev, next Override) Override {
	next.ID = prev.ID
	next.UserID = prev.UserID
	next.FeatureKey = prev.FeatureKey
	next.CreatedAt = prev.CreatedAt
	return next
}
