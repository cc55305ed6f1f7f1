// Package history implements the draw journal: domain types, the two storage
// backends, and the orchestrating service.
package history

import "time"

// Category vocabulary shared with the rule catalog. Records may also carry an
// empty category when the drawn rule had none.
const (
	CategoryTactical = "tactical"
	CategoryWeaponry = "weaponry"
	CategorySocial   = "social"
	CategoryContract = "contract"
)

// Categories lists the closed category vocabulary.
var Categories = []string{CategoryContract, CategorySocial, CategoryTactical, CategoryWeaponry}

// Record is one journaled draw event. Records are immutable once created; the
// only mutation is deletion. ID and Timestamp are assigned by the backend,
// never by the caller. Content is a snapshot of the rule text at draw time so
// later catalog edits do not rewrite history.
type Record struct {
	ID        int64     `json:"id"`
	RuleID    string    `json:"rule_id"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	ClientID  string    `json:"client_id,omitempty"`
}

// Stats summarizes a client's journal. TopCategory is empty and TopPct zero
// when the client has no categorized records.
type Stats struct {
	TodayCount  int            `json:"today_count"`
	ByCategory  map[string]int `json:"by_category"`
	TopCategory string         `json:"top_category,omitempty"`
	TopPct      int            `json:"top_pct"`
}
