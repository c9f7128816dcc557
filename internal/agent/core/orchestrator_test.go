package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/config"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/telemetry"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/master"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/session"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/session/inmemory"
	"github.com/Sanchay-T/influencer-platform-app-sub009/tools/scrape/models"
)

// stubLLM replays a fixed script of responses.
type stubLLM struct {
	script []ChatResponse
	calls  int
}

func (s *stubLLM) ChatWithTools(ctx context.Context, messages []Message, tools []Tool) (ChatResponse, error) {
	resp := s.script[s.calls%len(s.script)]
	s.calls++
	return resp, nil
}

type stubSearch struct {
	urls []string
}

func (s stubSearch) Discover(ctx context.Context, q string, k int) ([]string, error) {
	if k < len(s.urls) {
		return s.urls[:k], nil
	}
	return s.urls, nil
}

// stubScrape serves canned hydration data keyed by URL and handle.
type stubScrape struct {
	captions map[string]string // url -> caption, absent = no caption
	owners   map[string]string // url -> handle
	credits  *float64
}

func (s stubScrape) FetchPosts(ctx context.Context, urls []string) (models.Batch[models.Post], error) {
	b := models.Batch[models.Post]{}
	for _, u := range urls {
		p := models.Post{URL: u}
		if owner, ok := s.owners[u]; ok {
			p.OwnerHandle = &owner
		}
		if cap, ok := s.captions[u]; ok {
			c := cap
			p.Caption = &c
		}
		b.Items = append(b.Items, p)
	}
	return b, nil
}

func (s stubScrape) FetchTranscripts(ctx context.Context, urls []string) (models.Batch[models.Transcript], error) {
	b := models.Batch[models.Transcript]{}
	for _, u := range urls {
		b.Items = append(b.Items, models.Transcript{URL: u})
	}
	return b, nil
}

func (s stubScrape) FetchProfiles(ctx context.Context, handles []string) (models.Batch[models.Profile], error) {
	b := models.Batch[models.Profile]{Credits: s.credits}
	for _, h := range handles {
		b.Items = append(b.Items, models.Profile{Handle: h})
	}
	return b, nil
}

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			Model: "test-model",
			Models: map[string]config.LLMModel{
				"test-model": {CostPerMTokIn: 2.5, CostPerMTokOut: 10},
			},
		},
		Search:   config.SearchConfig{MaxResults: 20, CostPerQuery: 0.001},
		Scraping: config.ScrapingConfig{CostPerCall: 0.002},
		Agent:    config.AgentConfig{MaxIterations: 10, PerCreatorCap: 2, MaxResults: 50},
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, llm LLMProvider, searcher stubSearch, scraper stubScrape) (*Orchestrator, *master.Engine) {
	t.Helper()
	sessions := inmemory.NewStore()
	store, err := master.NewCSVStore(filepath.Join(t.TempDir(), "master.csv"))
	if err != nil {
		t.Fatalf("csv store: %v", err)
	}
	logger := log.New(os.Stderr, "[TEST] ", 0)
	merger := master.NewEngine(store, logger)
	tele := telemetry.New(config.TelemetryConfig{})
	return NewOrchestrator(cfg, llm, searcher, scraper, sessions, merger, "", tele, logger), merger
}

func toolCall(id, name string, args any) ToolCall {
	b, _ := json.Marshal(args)
	return ToolCall{ID: id, Type: "function", Function: FunctionCall{Name: name, Arguments: string(b)}}
}

func assistantWithTools(calls ...ToolCall) ChatResponse {
	return ChatResponse{
		Message:      Message{Role: "assistant", ToolCalls: calls},
		InputTokens:  100,
		OutputTokens: 10,
	}
}

func TestRunFitnessTrainerScenario(t *testing.T) {
	urls := make([]string, 12)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/reel/u%02d/", i+1)
	}
	owners := map[string]string{
		urls[0]: "h1", urls[1]: "h1", urls[2]: "h1",
		urls[3]: "h2", urls[4]: "h2",
		urls[5]: "h3", urls[6]: "h3", urls[7]: "h3",
		urls[8]: "h4", urls[9]: "h4",
		urls[10]: "h5", urls[11]: "h5",
	}
	captions := map[string]string{}
	for _, u := range urls[:10] {
		captions[u] = "certified fitness trainer workout"
	}

	decisions := make([]ClassifiedReel, 12)
	for i, u := range urls {
		d := "US"
		switch {
		case i >= 10:
			d = "NotUS"
		case i >= 8:
			d = "Unknown"
		}
		decisions[i] = ClassifiedReel{
			URL: u, USDecision: d, Relevance: "match",
			Confidence: 0.8, Reasons: []string{"stub"},
		}
	}
	finalContent, _ := json.Marshal(FinalOutput{Keyword: "fitness_trainer", Results: decisions})

	llm := &stubLLM{script: []ChatResponse{
		assistantWithTools(toolCall("c1", "search_reels", map[string]any{"query": "fitness_trainer", "limit": 12})),
		assistantWithTools(toolCall("c2", "hydrate_posts", map[string]any{"urls": urls})),
		assistantWithTools(toolCall("c3", "hydrate_profiles", map[string]any{"handles": []string{"h1", "h2", "h3", "h4", "h5"}})),
		{Message: Message{Role: "assistant", Content: string(finalContent)}, InputTokens: 100, OutputTokens: 10},
	}}

	credits := 120.0
	orch, _ := newTestOrchestrator(t, testConfig(), llm,
		stubSearch{urls: urls},
		stubScrape{captions: captions, owners: owners, credits: &credits})

	res, err := orch.Run(context.Background(), "fitness_trainer")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Results) > 10 {
		t.Fatalf("expected at most 10 results (8 US + 2 Unknown), got %d", len(res.Results))
	}
	counts := map[string]int{}
	for _, r := range res.Results {
		if r.USDecision == reel.DecisionNotUS {
			t.Fatalf("NotUS row %s in output", r.URL)
		}
		counts[r.OwnerHandle]++
	}
	for handle, n := range counts {
		if n > 2 {
			t.Fatalf("handle %s appears %d times, cap is 2", handle, n)
		}
	}
	if res.Fallback {
		t.Fatal("classified run must not trigger the fallback")
	}
	if res.CapHit {
		t.Fatal("run terminated normally, cap must not be reported")
	}

	if res.Metadata.Status != "completed" {
		t.Fatalf("session status = %s, want completed", res.Metadata.Status)
	}
	if res.Metadata.TotalURLs != 12 {
		t.Fatalf("TotalURLs = %d, want 12", res.Metadata.TotalURLs)
	}
	if res.Metadata.TotalUS != 8 {
		t.Fatalf("TotalUS = %d, want 8", res.Metadata.TotalUS)
	}

	if got := res.MergeStats.Added + res.MergeStats.Updated + res.MergeStats.Skipped; got != 12 {
		t.Fatalf("merge stats sum = %d, want 12", got)
	}

	// 4 model calls at 100/10 tokens each
	if res.Cost.LLM.InputTokens != 400 || res.Cost.LLM.OutputTokens != 40 {
		t.Fatalf("llm tokens = %d/%d, want 400/40", res.Cost.LLM.InputTokens, res.Cost.LLM.OutputTokens)
	}
	if res.Cost.Search.Queries != 1 {
		t.Fatalf("search queries = %d, want 1", res.Cost.Search.Queries)
	}
	if res.Cost.Scraping.Posts != 12 || res.Cost.Scraping.Profiles != 5 {
		t.Fatalf("scraping calls = %d posts / %d profiles, want 12/5", res.Cost.Scraping.Posts, res.Cost.Scraping.Profiles)
	}
	if res.Cost.Scraping.CreditsRemaining == nil || *res.Cost.Scraping.CreditsRemaining != 120.0 {
		t.Fatalf("credits = %v, want 120", res.Cost.Scraping.CreditsRemaining)
	}
	wantTotal := res.Cost.LLM.CostUSD + res.Cost.Search.CostUSD + res.Cost.Scraping.CostUSD
	if diff := res.Cost.TotalUSD - wantTotal; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("totalUsd = %v, want %v", res.Cost.TotalUSD, wantTotal)
	}
}

func TestRunMalformedFinalAnswer(t *testing.T) {
	llm := &stubLLM{script: []ChatResponse{
		{Message: Message{Role: "assistant", Content: "I could not produce the classification, sorry."}, InputTokens: 50, OutputTokens: 5},
	}}
	orch, _ := newTestOrchestrator(t, testConfig(), llm, stubSearch{}, stubScrape{})

	res, err := orch.Run(context.Background(), "fitness_trainer")
	if err != nil {
		t.Fatalf("a malformed final answer must not fail the run: %v", err)
	}
	if res.Metadata.Status != "completed" {
		t.Fatalf("session status = %s, want completed", res.Metadata.Status)
	}
	if len(res.Results) != 0 {
		t.Fatalf("expected empty results, got %d", len(res.Results))
	}
	if res.Cost.LLM.InputTokens != 50 || res.Cost.LLM.OutputTokens != 5 {
		t.Fatalf("cost report must reflect consumed tokens, got %d/%d", res.Cost.LLM.InputTokens, res.Cost.LLM.OutputTokens)
	}
}

// patchFailStore simulates a metadata backend outage after the loop.
type patchFailStore struct {
	session.Store
	failedFinalize bool
}

func (s *patchFailStore) PatchMetadata(id string, p session.MetadataPatch) error {
	return fmt.Errorf("metadata backend down")
}

func (s *patchFailStore) Finalize(id string, success bool, end time.Time) error {
	if !success {
		s.failedFinalize = true
	}
	return s.Store.Finalize(id, success, end)
}

func TestRunErrorFinalizesSessionAsFailed(t *testing.T) {
	llm := &stubLLM{script: []ChatResponse{
		{Message: Message{Role: "assistant", Content: validFinal}, InputTokens: 50, OutputTokens: 5},
	}}
	sessions := &patchFailStore{Store: inmemory.NewStore()}
	store, err := master.NewCSVStore(filepath.Join(t.TempDir(), "master.csv"))
	if err != nil {
		t.Fatalf("csv store: %v", err)
	}
	logger := log.New(os.Stderr, "[TEST] ", 0)
	orch := NewOrchestrator(testConfig(), llm, stubSearch{}, stubScrape{}, sessions,
		master.NewEngine(store, logger), "", telemetry.New(config.TelemetryConfig{}), logger)

	if _, err := orch.Run(context.Background(), "fitness_trainer"); err == nil {
		t.Fatal("expected the store failure to surface")
	}
	if !sessions.failedFinalize {
		t.Fatal("session left running after a failed run")
	}
}

func TestRunIterationCap(t *testing.T) {
	cfg := testConfig()
	cfg.Agent.MaxIterations = 3

	// the model never stops asking for tools
	llm := &stubLLM{script: []ChatResponse{
		assistantWithTools(toolCall("c1", "search_reels", map[string]any{"query": "more", "limit": 5})),
	}}
	orch, _ := newTestOrchestrator(t, cfg, llm, stubSearch{urls: []string{"https://example.com/reel/a/"}}, stubScrape{})

	res, err := orch.Run(context.Background(), "fitness_trainer")
	if err != nil {
		t.Fatalf("cap exhaustion must not fail the run: %v", err)
	}
	if !res.CapHit {
		t.Fatal("expected CapHit")
	}
	if res.Iterations != 3 {
		t.Fatalf("iterations = %d, want 3", res.Iterations)
	}
	if res.Metadata.Status != "completed" {
		t.Fatalf("session status = %s, want completed", res.Metadata.Status)
	}
}

func TestRunMergesIntoMaster(t *testing.T) {
	urls := []string{"https://example.com/reel/m1/", "https://example.com/reel/m2/"}
	final, _ := json.Marshal(FinalOutput{Keyword: "kw", Results: []ClassifiedReel{
		{URL: urls[0], USDecision: "US", Relevance: "match"},
		{URL: urls[1], USDecision: "US", Relevance: "match"},
	}})
	llm := &stubLLM{script: []ChatResponse{
		assistantWithTools(toolCall("c1", "search_reels", map[string]any{"query": "kw"})),
		{Message: Message{Role: "assistant", Content: string(final)}},
	}}

	orch, merger := newTestOrchestrator(t, testConfig(), llm, stubSearch{urls: urls}, stubScrape{})
	if _, err := orch.Run(context.Background(), "kw"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	groups, err := merger.Audit()
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("master dataset has duplicates: %+v", groups)
	}

	stats, err := merger.Merge([]reel.Row{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	_ = stats
}

func TestSanitizeKeyword(t *testing.T) {
	got := sanitizeKeyword("Fitness Trainer, TX!")
	if strings.ContainsAny(got, " ,!") || got != "fitness_trainer__tx_" {
		t.Fatalf("sanitizeKeyword = %q", got)
	}
}
