package reel

import (
	"strings"
	"time"
)

// Status is the coarse processing state of a discovered row. A row only
// moves forward: pending -> hydrated -> transcript_fetched.
type Status string

const (
	StatusPending           Status = "pending"
	StatusHydrated          Status = "hydrated"
	StatusTranscriptFetched Status = "transcript_fetched"
)

// USDecision is the geographic classification assigned to a content owner.
type USDecision string

const (
	DecisionUS      USDecision = "US"
	DecisionNotUS   USDecision = "NotUS"
	DecisionUnknown USDecision = "Unknown"
)

// RelevanceDecision is the keyword-relevance classification.
type RelevanceDecision string

const (
	RelevanceMatch   RelevanceDecision = "match"
	RelevancePartial RelevanceDecision = "partial"
	RelevanceNo      RelevanceDecision = "no"
)

// Row is the unit of discovery. URL is the natural key within a session and
// across the master dataset. UpdatedAt must be set on every mutation; it is
// the sole tie-breaker used by merge.
type Row struct {
	URL          string            `json:"url"`
	Keyword      string            `json:"keyword"`
	OwnerHandle  string            `json:"owner_handle,omitempty"`
	OwnerName    string            `json:"owner_name,omitempty"`
	Caption      string            `json:"caption,omitempty"`
	Transcript   string            `json:"transcript,omitempty"`
	Views        int64             `json:"views,omitempty"`
	Thumbnail    string            `json:"thumbnail,omitempty"`
	LocationName string            `json:"location_name,omitempty"`
	TakenAt      string            `json:"taken_at_iso,omitempty"`
	USDecision   USDecision        `json:"us_decision,omitempty"`
	Relevance    RelevanceDecision `json:"relevance_decision,omitempty"`
	DiscoveredAt time.Time         `json:"discovered_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Status       Status            `json:"status"`
}

// Touch stamps the row as freshly mutated.
func (r *Row) Touch(now time.Time) {
	r.UpdatedAt = now
}

// Recency returns the timestamp merge compares by: UpdatedAt, falling back
// to DiscoveredAt when a row was never touched after discovery.
func (r Row) Recency() time.Time {
	if r.UpdatedAt.IsZero() {
		return r.DiscoveredAt
	}
	return r.UpdatedAt
}

// New returns a pending row for a freshly discovered URL.
func New(url, keyword string, now time.Time) Row {
	return Row{
		URL:          url,
		Keyword:      keyword,
		DiscoveredAt: now,
		UpdatedAt:    now,
		Status:       StatusPending,
	}
}

// Clone copies a slice of rows. Stores hand out clones so callers can never
// alias internal state.
func Clone(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	copy(out, rows)
	return out
}

// Index builds a URL -> position index over rows.
func Index(rows []Row) map[string]int {
	idx := make(map[string]int, len(rows))
	for i, r := range rows {
		idx[r.URL] = i
	}
	return idx
}

// ContainsKeyword reports whether the row's caption or transcript mentions
// the keyword, token by token, case-insensitively.
func (r Row) ContainsKeyword(keyword string) bool {
	hay := strings.ToLower(r.Caption + " " + r.Transcript)
	toks := strings.FieldsFunc(strings.ToLower(keyword), func(c rune) bool {
		return c == ' ' || c == '_' || c == '-' || c == ','
	})
	for _, tok := range toks {
		if strings.Contains(hay, tok) {
			return true
		}
	}
	return false
}
