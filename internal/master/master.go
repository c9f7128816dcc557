// Package master maintains the cross-session deduplicated dataset of all
// discovered rows and the merge engine that reconciles finished sessions
// into it.
package master

import (
	"fmt"
	"log"
	"sort"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
)

// Store is the persistence backend for the master dataset. Merge reads the
// table in full and rewrites it in full; there is no single-session owner.
type Store interface {
	Load() ([]reel.Row, error)
	Replace(rows []reel.Row) error
}

// Stats reports the outcome of one merge. Added+Updated+Skipped always
// equals the session's row count.
type Stats struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Engine applies last-write-wins merges of session rows into a Store.
type Engine struct {
	store  Store
	logger *log.Logger
}

func NewEngine(store Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[MERGE] ", log.LstdFlags)
	}
	return &Engine{store: store, logger: logger}
}

// Merge reconciles sessionRows into the master dataset. Idempotent: merging
// the same session twice leaves the dataset unchanged on the second pass.
func (e *Engine) Merge(sessionRows []reel.Row) (Stats, error) {
	current, err := e.store.Load()
	if err != nil {
		return Stats{}, fmt.Errorf("loading master dataset: %w", err)
	}
	merged, stats := MergeRows(current, sessionRows)
	if err := e.store.Replace(merged); err != nil {
		return Stats{}, fmt.Errorf("rewriting master dataset: %w", err)
	}
	e.logger.Printf("merged session: added=%d updated=%d skipped=%d master_total=%d",
		stats.Added, stats.Updated, stats.Skipped, len(merged))
	return stats, nil
}

// MergeRows resolves URL collisions between the master rows and session
// rows by recency (UpdatedAt, falling back to DiscoveredAt). The whole row
// is replaced, never field-merged: a session only ever produces a more
// complete version of a row it owns.
func MergeRows(master, session []reel.Row) ([]reel.Row, Stats) {
	out := reel.Clone(master)
	idx := reel.Index(out)
	var stats Stats
	for _, row := range session {
		pos, exists := idx[row.URL]
		if !exists {
			idx[row.URL] = len(out)
			out = append(out, row)
			stats.Added++
			continue
		}
		if row.Recency().After(out[pos].Recency()) {
			out[pos] = row
			stats.Updated++
		} else {
			stats.Skipped++
		}
	}
	return out, stats
}

// DuplicateGroup describes one URL that appears more than once.
type DuplicateGroup struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// Audit scans the master dataset for URL duplicates. A healthy dataset
// returns an empty slice; anything else means the dedup invariant was
// violated by an out-of-band write.
func (e *Engine) Audit() ([]DuplicateGroup, error) {
	rows, err := e.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading master dataset: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.URL]++
	}
	var groups []DuplicateGroup
	for url, n := range counts {
		if n > 1 {
			groups = append(groups, DuplicateGroup{URL: url, Count: n})
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].URL < groups[j].URL })
	return groups, nil
}
