// Package feature provides the feature requirement table: which tier a
// feature key needs. Pure data, no I/O.
package feature

import (
	"sort"

	"github.com/artpar/entitled/domain/tier"
)

// Table maps feature keys to the minimum tier required to use them.
// Immutable after construction; safe for concurrent reads.
type Table struct {
	required map[string]tier.Tier
}

// NewTable builds a requirement table. Keys with a tier outside the
// closed set are rejected by config validation before this point; the
// table itself stores whatever it is given.
func NewTable(required map[string]tier.Tier) Table {
	m := make(map[string]tier.Tier, len(required))
	for k, v := range required {
		m[k] = v
	}
	return Table{required: m}
}

// RequiredTierOf returns the minimum tier for key. Unregistered keys
// resolve to tier.Free with registered=false: a deliberate fail-open
// default so shipping a new feature key before registering it never
// locks users out. Callers that need to distinguish the default from a
// real free-tier entry check the second result.
func (t Table) RequiredTierOf(key string) (required tier.Tier, registered bool) {
	req, ok := t.required[key]
	if !ok {
		return tier.Free, false
	}
	return req, true
}

// Keys returns all registered feature keys, sorted.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t.required))
	for k := range t.required {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered features.
func (t Table) Len() int {
	return len(t.required)
}
