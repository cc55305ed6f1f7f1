package history

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ErrBackendUnavailable marks storage failures: the backend could not be
// reached or rejected the request. Nothing in this package retries; the
// endpoint layer maps it to a 500.
var ErrBackendUnavailable = errors.New("history backend unavailable")

// Store defines the persistence contract implemented by the Supabase and the
// in-memory backends. Every operation is scoped to exactly one client; an
// empty clientID is a caller error, not "match all clients".
type Store interface {
	// Add persists a new record and returns it with the backend-assigned
	// id and timestamp.
	Add(ctx context.Context, ruleID, content, category, clientID string) (Record, error)
	// ListRecent returns at most limit records for the client, newest first
	// (descending id).
	ListRecent(ctx context.Context, limit int, clientID string) ([]Record, error)
	// RecentRuleIDs returns the rule ids of the client's most recent records,
	// newest first. Used by the UI for anti-repeat logic.
	RecentRuleIDs(ctx context.Context, limit int, clientID string) ([]string, error)
	// DeleteLast removes and returns the client's most recent record.
	// The bool result is false when the client has no records.
	DeleteLast(ctx context.Context, clientID string) (Record, bool, error)
	// DeleteByIDs removes the client's records whose id appears in ids.
	// Malformed ids and ids owned by other clients are silently skipped;
	// the returned count covers only rows actually deleted.
	DeleteByIDs(ctx context.Context, clientID string, ids []any) (int, error)
	// CountToday counts the client's records stamped on the current UTC date.
	CountToday(ctx context.Context, clientID string) (int, error)
	// CountByCategory counts the client's records per non-empty category.
	CountByCategory(ctx context.Context, clientID string) (map[string]int, error)
	// HealthCheck probes backend reachability. nil means reachable.
	HealthCheck(ctx context.Context) error
}

// coerceIDs narrows a caller-supplied id list to well-formed numeric
// identifiers. JSON decoding hands numbers over as float64 and callers may
// also send numeric strings; everything else is dropped without error.
func coerceIDs(ids []any) []int64 {
	out := make([]int64, 0, len(ids))
	for _, raw := range ids {
		switch v := raw.(type) {
		case float64:
			out = append(out, int64(v))
		case int:
			out = append(out, int64(v))
		case int64:
			out = append(out, v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				out = append(out, n)
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				out = append(out, n)
			}
		}
	}
	return out
}
