package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/config"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/telemetry"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/analysis"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/costs"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/master"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/session"
	"github.com/Sanchay-T/influencer-platform-app-sub009/tools/scrape"
	"github.com/Sanchay-T/influencer-platform-app-sub009/tools/search"
)

const systemPreamble = `You are a content-discovery agent for short-form reels.
Strategy, in order:
1. Search first. Use search_reels to gather candidate URLs for the keyword.
2. Hydrate. Fetch posts for the URLs you found, then transcripts for promising ones.
3. Analyze before fetching more. Use analyze_session to check coverage before spending more calls.
4. Verify geography last. Hydrate profiles for the owners you intend to keep.
5. Cap per creator: never plan for more than a couple of reels from one owner.
When you are done, emit ONLY the declared output schema as JSON: an object with
"keyword" and "results", each result carrying url, us_decision (US|NotUS|Unknown),
relevance_decision (match|partial|no), confidence and reasons. No prose around it.`

// Orchestrator drives the bounded tool-calling conversation for one keyword
// and reconciles the outcome into the session and master stores.
type Orchestrator struct {
	config    *config.Config
	logger    *log.Logger
	telemetry *telemetry.Telemetry

	llm      LLMProvider
	search   search.Searcher
	scrape   scrape.Client
	sessions session.Store
	merger   *master.Engine

	// path handed read-only to sandboxed analysis
	masterPath string
}

// NewOrchestrator wires the loop's collaborators together.
func NewOrchestrator(cfg *config.Config, llm LLMProvider, searcher search.Searcher, scraper scrape.Client, sessions session.Store, merger *master.Engine, masterPath string, tel *telemetry.Telemetry, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	return &Orchestrator{
		config:     cfg,
		logger:     logger,
		telemetry:  tel,
		llm:        llm,
		search:     searcher,
		scrape:     scraper,
		sessions:   sessions,
		merger:     merger,
		masterPath: masterPath,
	}
}

// Run executes one full agent run for a keyword and returns the filtered
// result set plus the run's cost report. Degraded outcomes (empty search,
// malformed final answer, iteration cap) still complete the session; only
// caller bugs and setup failures return an error.
func (o *Orchestrator) Run(ctx context.Context, keyword string) (RunResult, error) {
	start := time.Now().UTC()
	sessionID := fmt.Sprintf("%s_%s_%s",
		sanitizeKeyword(keyword), start.Format("20060102T150405"), uuid.New().String()[:8])

	if err := o.sessions.Init(sessionID, keyword, start); err != nil {
		return RunResult{}, fmt.Errorf("initializing session: %w", err)
	}
	o.logger.Printf("session %s started for keyword %q", sessionID, keyword)

	ledger := costs.NewLedger()
	router := &Router{
		Sessions:   o.sessions,
		SessionID:  sessionID,
		Keyword:    keyword,
		Search:     o.search,
		Scrape:     o.scrape,
		Ledger:     ledger,
		MasterPath: o.masterPath,
		MaxResults: o.config.Search.MaxResults,
		OutputCap:  o.config.Agent.SandboxOutputCap,
		Logger:     o.logger,
	}
	if o.config.Agent.SandboxEnabled {
		router.Sandbox = newSandbox(o.config.Agent, o.logger)
	}

	final, iterations, capHit, loopErr := o.converse(ctx, router, keyword)
	if loopErr != nil {
		return RunResult{}, o.fail(sessionID, loopErr)
	}
	if capHit {
		o.telemetry.RecordIterationCap(sessionID, iterations)
	}

	if err := o.applyDecisions(sessionID, final); err != nil {
		return RunResult{}, o.fail(sessionID, err)
	}

	rows, err := o.sessions.Rows(sessionID)
	if err != nil {
		return RunResult{}, o.fail(sessionID, err)
	}

	fr := FilterRows(rows, o.config.Agent.PerCreatorCap, o.config.Agent.MaxResults)
	if fr.Fallback {
		o.telemetry.RecordFilterFallback(sessionID)
	}

	if err := o.finalize(sessionID, rows, fr.Rows); err != nil {
		return RunResult{}, o.fail(sessionID, err)
	}

	stats, err := o.merger.Merge(rows)
	if err != nil {
		// the session itself completed; a merge failure loses only the
		// cross-session view
		o.logger.Printf("session %s: master merge failed: %v", sessionID, err)
	}

	report := ledger.Resolve(o.rates())
	o.telemetry.RecordRunCost(sessionID, report.TotalUSD)
	o.telemetry.RecordRun("completed")

	meta, err := o.sessions.Metadata(sessionID)
	if err != nil {
		return RunResult{}, err
	}

	o.logger.Printf("session %s completed: %d rows, %d returned, cost %s",
		sessionID, len(rows), len(fr.Rows), telemetry.FormatUSD(report.TotalUSD))

	return RunResult{
		SessionID:  sessionID,
		Keyword:    keyword,
		Results:    fr.Rows,
		Metadata:   meta,
		MergeStats: stats,
		Cost:       report,
		Iterations: iterations,
		CapHit:     capHit,
		Fallback:   fr.Fallback,
	}, nil
}

// converse runs the bounded tool-calling loop and returns the model's final
// structured answer. A malformed final answer degrades to an empty result
// set; the raw text is logged for the audit trail.
func (o *Orchestrator) converse(ctx context.Context, router *Router, keyword string) (FinalOutput, int, bool, error) {
	messages := []Message{
		{Role: "system", Content: systemPreamble},
		{Role: "user", Content: fmt.Sprintf("Discover and classify reels for the keyword: %q", keyword)},
	}
	tools := router.Catalogue()

	var lastContent string
	iterations := 0
	capHit := true
	for iterations < o.config.Agent.MaxIterations {
		iterations++

		resp, err := o.llm.ChatWithTools(ctx, messages, tools)
		if err != nil {
			return FinalOutput{}, iterations, false, fmt.Errorf("model request (iteration %d): %w", iterations, err)
		}
		router.Ledger.Record(costs.Event{
			Model:        o.config.LLM.Model,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
		})
		o.telemetry.RecordLLMUsage(resp.InputTokens, resp.OutputTokens)

		lastContent = resp.Message.Content
		if len(resp.Message.ToolCalls) == 0 {
			capHit = false
			break
		}

		messages = append(messages, resp.Message)
		toolMsgs, err := o.fanOut(ctx, router, resp.Message.ToolCalls)
		if err != nil {
			return FinalOutput{}, iterations, false, err
		}
		messages = append(messages, toolMsgs...)
	}

	final, err := ParseFinal(lastContent)
	if err != nil {
		o.logger.Printf("final answer unparseable (%v), continuing with empty results; raw: %s",
			err, clip(lastContent, 500))
		return FinalOutput{Keyword: keyword}, iterations, capHit, nil
	}
	return final, iterations, capHit, nil
}

// fanOut executes all requested tool calls concurrently and returns their
// messages in the order the model requested them. The model correlates by
// call id, but request order keeps transcripts readable.
func (o *Orchestrator) fanOut(ctx context.Context, router *Router, calls []ToolCall) ([]Message, error) {
	results := make([]Message, len(calls))
	var wg sync.WaitGroup
	errCh := make(chan error, len(calls))

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ToolCall) {
			defer wg.Done()
			o.telemetry.RecordToolCall(call.Function.Name)
			msg, err := router.Execute(ctx, call)
			if err != nil {
				errCh <- err
				return
			}
			if strings.Contains(msg.Content, `"error"`) {
				o.telemetry.RecordToolError(call.Function.Name)
			}
			results[i] = msg
		}(i, call)
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return nil, err
	}
	return results, nil
}

// applyDecisions writes the model's classifications back into the session as
// row updates, never as a table replacement. A us_decision also propagates
// to the owner's other rows, since geography is an owner-level fact.
func (o *Orchestrator) applyDecisions(sessionID string, final FinalOutput) error {
	if len(final.Results) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return o.sessions.Update(sessionID, func(rows []reel.Row) []reel.Row {
		idx := reel.Index(rows)
		ownerDecisions := make(map[string]reel.USDecision)
		for _, c := range final.Results {
			i, ok := idx[c.URL]
			if !ok {
				continue
			}
			r := &rows[i]
			if c.USDecision != "" {
				r.USDecision = reel.USDecision(c.USDecision)
				if r.OwnerHandle != "" {
					ownerDecisions[r.OwnerHandle] = r.USDecision
				}
			}
			if c.Relevance != "" {
				r.Relevance = reel.RelevanceDecision(c.Relevance)
			}
			r.Touch(now)
		}
		for i := range rows {
			r := &rows[i]
			if r.USDecision == "" && r.OwnerHandle != "" {
				if d, ok := ownerDecisions[r.OwnerHandle]; ok {
					r.USDecision = d
					r.Touch(now)
				}
			}
		}
		return rows
	})
}

// finalize stamps the summary counters and closes the session.
func (o *Orchestrator) finalize(sessionID string, rows, filtered []reel.Row) error {
	var processed, relevant, us int
	for _, r := range rows {
		if r.Status != reel.StatusPending {
			processed++
		}
		if r.Relevance == reel.RelevanceMatch || r.Relevance == reel.RelevancePartial {
			relevant++
		}
		if r.USDecision == reel.DecisionUS {
			us++
		}
	}
	total := len(rows)
	if err := o.sessions.PatchMetadata(sessionID, session.MetadataPatch{
		TotalURLs:      &total,
		TotalProcessed: &processed,
		TotalRelevant:  &relevant,
		TotalUS:        &us,
	}); err != nil {
		return err
	}
	return o.sessions.Finalize(sessionID, true, time.Now().UTC())
}

// fail marks the session failed so no error return leaves it running.
func (o *Orchestrator) fail(sessionID string, err error) error {
	if ferr := o.sessions.Finalize(sessionID, false, time.Now().UTC()); ferr != nil {
		o.logger.Printf("session %s: finalize after failure: %v", sessionID, ferr)
	}
	o.telemetry.RecordRun("failed")
	return err
}

func (o *Orchestrator) rates() costs.Rates {
	models := make(map[string]costs.ModelRate, len(o.config.LLM.Models))
	for name, m := range o.config.LLM.Models {
		models[name] = costs.ModelRate{
			InputPerMTok:  m.CostPerMTokIn,
			OutputPerMTok: m.CostPerMTokOut,
		}
	}
	return costs.Rates{
		Models:          models,
		SearchPerQuery:  o.config.Search.CostPerQuery,
		ScrapingPerCall: o.config.Scraping.CostPerCall,
	}
}

func newSandbox(cfg config.AgentConfig, logger *log.Logger) *analysis.Sandbox {
	return analysis.NewSandbox(cfg.SandboxInterpreter, cfg.SandboxTimeout, cfg.SandboxOutputCap, logger)
}

func sanitizeKeyword(keyword string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			return c
		case c >= 'A' && c <= 'Z':
			return c + ('a' - 'A')
		default:
			return '_'
		}
	}, keyword)
}

// ReportJSON renders the cost report for logs and API responses.
func ReportJSON(rep costs.Report) string {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
