package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Sanchay-T/influencer-platform-app-sub009/tools/scrape/models"
)

// maxSampleItems bounds every batch summary regardless of input size.
// Context is billed per token; raw batches never re-enter the conversation.
const maxSampleItems = 5

// BatchSummary is the bounded representation of a large tool result.
type BatchSummary struct {
	Total          int                `json:"total"`
	Ratios         map[string]float64 `json:"ratios"`
	Sample         []map[string]any   `json:"sample"`
	Recommendation string             `json:"recommendation"`
}

// SummarizePosts compresses a hydration batch. All heuristics are pure
// functions of the input, so the same batch always yields the same summary.
func SummarizePosts(batch []models.Post, keyword string) BatchSummary {
	s := BatchSummary{Total: len(batch), Ratios: map[string]float64{}}
	if len(batch) == 0 {
		s.Recommendation = "no posts returned; try a different search query"
		return s
	}

	var withCaption, withOwner, keywordHits int
	for _, p := range batch {
		if p.Caption != nil && *p.Caption != "" {
			withCaption++
			if containsAnyToken(*p.Caption, keyword) {
				keywordHits++
			}
		}
		if p.OwnerHandle != nil && *p.OwnerHandle != "" {
			withOwner++
		}
	}
	s.Ratios["caption_coverage"] = ratio(withCaption, len(batch))
	s.Ratios["owner_coverage"] = ratio(withOwner, len(batch))
	s.Ratios["keyword_in_caption"] = ratio(keywordHits, len(batch))

	for _, p := range samplePosts(batch) {
		item := map[string]any{"url": p.URL}
		if p.OwnerHandle != nil {
			item["owner_handle"] = *p.OwnerHandle
		}
		if p.Caption != nil {
			item["caption"] = clip(*p.Caption, 160)
		}
		if p.Views != nil {
			item["views"] = *p.Views
		}
		s.Sample = append(s.Sample, item)
	}

	switch {
	case s.Ratios["keyword_in_caption"] < 0.3:
		s.Recommendation = "few captions mention the keyword; fetch transcripts before discarding, or refine the search query"
	case s.Ratios["owner_coverage"] < 0.8:
		s.Recommendation = "owner handles are sparse; hydrate profiles for the owners you have before verifying geography"
	default:
		s.Recommendation = "captions look relevant; fetch transcripts for the sampled URLs, then verify owner geography"
	}
	return s
}

// SummarizeTranscripts compresses a transcript batch.
func SummarizeTranscripts(batch []models.Transcript, keyword string) BatchSummary {
	s := BatchSummary{Total: len(batch), Ratios: map[string]float64{}}
	if len(batch) == 0 {
		s.Recommendation = "no transcripts returned; classify on captions alone"
		return s
	}

	var withText, keywordHits int
	for _, t := range batch {
		if t.Text != nil && *t.Text != "" {
			withText++
			if containsAnyToken(*t.Text, keyword) {
				keywordHits++
			}
		}
	}
	s.Ratios["transcript_coverage"] = ratio(withText, len(batch))
	s.Ratios["keyword_in_transcript"] = ratio(keywordHits, len(batch))

	count := 0
	for _, t := range batch {
		if count >= maxSampleItems {
			break
		}
		if t.Text == nil || *t.Text == "" {
			continue
		}
		s.Sample = append(s.Sample, map[string]any{
			"url":        t.URL,
			"transcript": clip(*t.Text, 200),
		})
		count++
	}

	if s.Ratios["keyword_in_transcript"] >= 0.5 {
		s.Recommendation = "transcripts confirm relevance; proceed to geography verification"
	} else {
		s.Recommendation = "transcripts rarely mention the keyword; mark weak matches partial and avoid fetching more from these owners"
	}
	return s
}

// SummarizeProfiles compresses a profile batch.
func SummarizeProfiles(batch []models.Profile, keyword string) BatchSummary {
	s := BatchSummary{Total: len(batch), Ratios: map[string]float64{}}
	if len(batch) == 0 {
		s.Recommendation = "no profiles returned; geography stays Unknown"
		return s
	}

	var withBio, withLocation int
	for _, p := range batch {
		if p.Biography != nil && *p.Biography != "" {
			withBio++
		}
		if p.LocationName != nil && *p.LocationName != "" {
			withLocation++
		}
	}
	s.Ratios["bio_coverage"] = ratio(withBio, len(batch))
	s.Ratios["location_coverage"] = ratio(withLocation, len(batch))

	for i, p := range batch {
		if i >= maxSampleItems {
			break
		}
		item := map[string]any{"handle": p.Handle}
		if p.Biography != nil {
			item["biography"] = clip(*p.Biography, 160)
		}
		if p.LocationName != nil {
			item["location_name"] = *p.LocationName
		}
		s.Sample = append(s.Sample, item)
	}

	if s.Ratios["location_coverage"] < 0.5 {
		s.Recommendation = "location signals are sparse; lean on bios and names, leave ambiguous owners Unknown rather than guessing"
	} else {
		s.Recommendation = "location data present for most owners; assign US decisions and emit the final answer"
	}
	return s
}

// samplePosts picks at most maxSampleItems posts, at most one per owner
// where possible, in a stable order.
func samplePosts(batch []models.Post) []models.Post {
	sorted := make([]models.Post, len(batch))
	copy(sorted, batch)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].URL < sorted[j].URL })

	seen := map[string]bool{}
	var out []models.Post
	for _, p := range sorted {
		if len(out) >= maxSampleItems {
			return out
		}
		owner := ""
		if p.OwnerHandle != nil {
			owner = *p.OwnerHandle
		}
		if owner != "" && seen[owner] {
			continue
		}
		seen[owner] = true
		out = append(out, p)
	}
	for _, p := range sorted {
		if len(out) >= maxSampleItems {
			break
		}
		if !containsPost(out, p.URL) {
			out = append(out, p)
		}
	}
	return out
}

func containsPost(posts []models.Post, url string) bool {
	for _, p := range posts {
		if p.URL == url {
			return true
		}
	}
	return false
}

func containsAnyToken(text, keyword string) bool {
	hay := strings.ToLower(text)
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

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	// two decimals is plenty for a steering signal
	return float64(int(float64(n)/float64(total)*100+0.5)) / 100
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
