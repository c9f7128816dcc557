package core

import (
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
)

// FilterResult is the outcome of the decision pipeline.
type FilterResult struct {
	Rows []reel.Row
	// Fallback is set when the classified candidate set filtered down to
	// nothing and the unfiltered rows were served instead.
	Fallback bool
}

// FilterRows applies geography, per-creator-cap and truncation rules to the
// finalized session rows. Candidates are the rows the model classified; rows
// it never mentioned are not candidates.
//
// Unknown geography is kept: upstream search is already geo-biased, so an
// unverified owner is a weak positive, not a reject.
func FilterRows(rows []reel.Row, perCreatorCap, maxResults int) FilterResult {
	var candidates []reel.Row
	for _, r := range rows {
		if r.USDecision != "" || r.Relevance != "" {
			candidates = append(candidates, r)
		}
	}

	filtered := capAndTruncate(geoFilter(candidates), perCreatorCap, maxResults)
	if len(filtered) > 0 || len(rows) == 0 {
		return FilterResult{Rows: filtered}
	}

	// Every row failed classification. Serving nothing helps nobody, so
	// fall back to the unclassified set, still capped and truncated.
	return FilterResult{
		Rows:     capAndTruncate(rows, perCreatorCap, maxResults),
		Fallback: true,
	}
}

func geoFilter(rows []reel.Row) []reel.Row {
	var out []reel.Row
	for _, r := range rows {
		if r.USDecision == reel.DecisionNotUS {
			continue
		}
		out = append(out, r)
	}
	return out
}

func capAndTruncate(rows []reel.Row, perCreatorCap, maxResults int) []reel.Row {
	perOwner := make(map[string]int)
	var out []reel.Row
	for _, r := range rows {
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
		if r.OwnerHandle != "" && perCreatorCap > 0 {
			if perOwner[r.OwnerHandle] >= perCreatorCap {
				continue
			}
			perOwner[r.OwnerHandle]++
		}
		out = append(out, r)
	}
	return out
}
