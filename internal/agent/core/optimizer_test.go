package core

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/Sanchay-T/influencer-platform-app-sub009/tools/scrape/models"
)

func sp(s string) *string { return &s }

func postBatch(n int, ownersPerPost func(i int) string) []models.Post {
	var out []models.Post
	for i := 0; i < n; i++ {
		out = append(out, models.Post{
			URL:         fmt.Sprintf("https://example.com/reel/%03d/", i),
			OwnerHandle: sp(ownersPerPost(i)),
			Caption:     sp(fmt.Sprintf("fitness tips number %d", i)),
		})
	}
	return out
}

func TestSummarizePostsBoundedSample(t *testing.T) {
	batch := postBatch(200, func(i int) string { return fmt.Sprintf("owner%d", i) })
	s := SummarizePosts(batch, "fitness_trainer")
	if s.Total != 200 {
		t.Fatalf("total = %d, want 200", s.Total)
	}
	if len(s.Sample) > maxSampleItems {
		t.Fatalf("sample size %d exceeds bound %d", len(s.Sample), maxSampleItems)
	}
}

func TestSummarizePostsSampleOnePerOwner(t *testing.T) {
	// 10 posts across 5 owners; sample should not repeat an owner
	batch := postBatch(10, func(i int) string { return fmt.Sprintf("owner%d", i%5) })
	s := SummarizePosts(batch, "fitness")
	seen := map[any]bool{}
	for _, item := range s.Sample {
		owner := item["owner_handle"]
		if seen[owner] {
			t.Fatalf("owner %v sampled twice", owner)
		}
		seen[owner] = true
	}
}

func TestSummarizePostsDeterministic(t *testing.T) {
	batch := postBatch(50, func(i int) string { return fmt.Sprintf("owner%d", i%7) })
	a := SummarizePosts(batch, "fitness_trainer")
	b := SummarizePosts(batch, "fitness_trainer")
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same batch produced different summaries")
	}
}

func TestSummarizePostsRatios(t *testing.T) {
	batch := []models.Post{
		{URL: "https://example.com/reel/1/", OwnerHandle: sp("a"), Caption: sp("fitness trainer tips")},
		{URL: "https://example.com/reel/2/", OwnerHandle: sp("b"), Caption: sp("cooking pasta")},
		{URL: "https://example.com/reel/3/", OwnerHandle: sp("c")},
		{URL: "https://example.com/reel/4/"},
	}
	s := SummarizePosts(batch, "fitness_trainer")
	if s.Ratios["caption_coverage"] != 0.5 {
		t.Fatalf("caption_coverage = %v, want 0.5", s.Ratios["caption_coverage"])
	}
	if s.Ratios["owner_coverage"] != 0.75 {
		t.Fatalf("owner_coverage = %v, want 0.75", s.Ratios["owner_coverage"])
	}
	if s.Ratios["keyword_in_caption"] != 0.25 {
		t.Fatalf("keyword_in_caption = %v, want 0.25", s.Ratios["keyword_in_caption"])
	}
}

func TestSummarizeEmptyBatches(t *testing.T) {
	if s := SummarizePosts(nil, "kw"); s.Total != 0 || s.Recommendation == "" {
		t.Fatalf("empty post batch should still recommend a next step: %+v", s)
	}
	if s := SummarizeTranscripts(nil, "kw"); s.Total != 0 || s.Recommendation == "" {
		t.Fatalf("empty transcript batch should still recommend a next step: %+v", s)
	}
	if s := SummarizeProfiles(nil, "kw"); s.Total != 0 || s.Recommendation == "" {
		t.Fatalf("empty profile batch should still recommend a next step: %+v", s)
	}
}

func TestSummarizeTranscriptsSkipsEmptyText(t *testing.T) {
	batch := []models.Transcript{
		{URL: "https://example.com/reel/1/", Text: sp("fitness trainer workout")},
		{URL: "https://example.com/reel/2/"},
		{URL: "https://example.com/reel/3/", Text: sp("")},
	}
	s := SummarizeTranscripts(batch, "fitness_trainer")
	if len(s.Sample) != 1 {
		t.Fatalf("sample should only include transcripts with text, got %d", len(s.Sample))
	}
	if s.Ratios["transcript_coverage"] != 0.33 {
		t.Fatalf("transcript_coverage = %v, want 0.33", s.Ratios["transcript_coverage"])
	}
}

func TestSummarizeProfilesLocationCoverage(t *testing.T) {
	batch := []models.Profile{
		{Handle: "a", LocationName: sp("Austin")},
		{Handle: "b"},
	}
	s := SummarizeProfiles(batch, "kw")
	if s.Ratios["location_coverage"] != 0.5 {
		t.Fatalf("location_coverage = %v, want 0.5", s.Ratios["location_coverage"])
	}
}
