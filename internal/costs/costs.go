// Package costs accumulates usage events from the paid subsystems of a run
// (LLM tokens, search queries, scraping calls) and resolves them into a
// normalized USD report against a configured rate table.
package costs

import (
	"math"
	"sync"
)

// ScrapeKind distinguishes the billable scraping call subtypes.
type ScrapeKind string

const (
	ScrapePosts       ScrapeKind = "posts"
	ScrapeTranscripts ScrapeKind = "transcripts"
	ScrapeProfiles    ScrapeKind = "profiles"
)

// Event is one usage observation pushed by a tool invocation. Exactly one
// of the three groups is populated.
type Event struct {
	// LLM usage
	Model        string
	InputTokens  int64
	OutputTokens int64

	// Search usage
	SearchQueries int

	// Scraping usage
	Scrape           ScrapeKind
	ScrapeCalls      int
	CreditsRemaining *float64
}

// ModelRate prices one LLM model per million tokens.
type ModelRate struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Rates is the versioned rate table, sourced from configuration.
type Rates struct {
	Models          map[string]ModelRate
	SearchPerQuery  float64
	ScrapingPerCall float64
}

type llmTally struct {
	calls        int
	inputTokens  int64
	outputTokens int64
}

type tally struct {
	llm              map[string]*llmTally
	searchQueries    int
	scrapeCalls      map[ScrapeKind]int
	creditsRemaining *float64
}

func newTally() tally {
	return tally{
		llm:         make(map[string]*llmTally),
		scrapeCalls: make(map[ScrapeKind]int),
	}
}

func (t *tally) add(ev Event) {
	if ev.Model != "" {
		lt, ok := t.llm[ev.Model]
		if !ok {
			lt = &llmTally{}
			t.llm[ev.Model] = lt
		}
		lt.calls++
		lt.inputTokens += ev.InputTokens
		lt.outputTokens += ev.OutputTokens
	}
	t.searchQueries += ev.SearchQueries
	if ev.Scrape != "" {
		t.scrapeCalls[ev.Scrape] += ev.ScrapeCalls
	}
	if ev.CreditsRemaining != nil {
		// latest observation wins; never averaged or summed
		v := *ev.CreditsRemaining
		t.creditsRemaining = &v
	}
}

// Ledger is a per-run accumulator. Tool invocations push events onto its
// queue; the orchestration loop resolves it exactly once at run end. The
// ledger is owned by its run, so concurrent runs never share counters.
type Ledger struct {
	events chan Event
	mu     sync.Mutex
	agg    tally
}

func NewLedger() *Ledger {
	return &Ledger{
		events: make(chan Event, 1024),
		agg:    newTally(),
	}
}

// Record queues a usage event. It never blocks: if the queue is full the
// backlog is folded into the aggregate inline.
func (l *Ledger) Record(ev Event) {
	select {
	case l.events <- ev:
	default:
		l.mu.Lock()
		l.drainLocked()
		l.agg.add(ev)
		l.mu.Unlock()
	}
}

func (l *Ledger) drainLocked() {
	for {
		select {
		case ev := <-l.events:
			l.agg.add(ev)
		default:
			return
		}
	}
}

// LLMReport is the llm section of the cost report.
type LLMReport struct {
	Calls        int     `json:"calls"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	CostUSD      float64 `json:"costUsd"`
	Model        string  `json:"model"`
}

// SearchReport is the search section of the cost report.
type SearchReport struct {
	Queries         int     `json:"queries"`
	CostPerQueryUSD float64 `json:"costPerQueryUsd"`
	CostUSD         float64 `json:"costUsd"`
}

// ScrapingReport is the scraping section of the cost report.
type ScrapingReport struct {
	Posts            int      `json:"posts"`
	Transcripts      int      `json:"transcripts"`
	Profiles         int      `json:"profiles"`
	TotalCalls       int      `json:"totalCalls"`
	CostPerCallUSD   float64  `json:"costPerCallUsd"`
	CostUSD          float64  `json:"costUsd"`
	CreditsRemaining *float64 `json:"creditsRemaining,omitempty"`
}

// Report is the normalized USD cost report for one run.
type Report struct {
	LLM      LLMReport      `json:"llm"`
	Search   SearchReport   `json:"search"`
	Scraping ScrapingReport `json:"scraping"`
	TotalUSD float64        `json:"totalUsd"`
}

// Resolve drains any queued events and prices the run against the rate
// table. Safe to call more than once; later calls reflect later events.
func (l *Ledger) Resolve(rates Rates) Report {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.drainLocked()

	var rep Report

	var llmCost float64
	for model, lt := range l.agg.llm {
		rate := rates.Models[model]
		llmCost += float64(lt.inputTokens)/1e6*rate.InputPerMTok +
			float64(lt.outputTokens)/1e6*rate.OutputPerMTok
		rep.LLM.Calls += lt.calls
		rep.LLM.InputTokens += lt.inputTokens
		rep.LLM.OutputTokens += lt.outputTokens
		// the loop runs a single routed model; if several were somehow
		// used, report the busiest one
		if rep.LLM.Model == "" || lt.calls > l.agg.llm[rep.LLM.Model].calls {
			rep.LLM.Model = model
		}
	}
	rep.LLM.CostUSD = round6(llmCost)

	rep.Search.Queries = l.agg.searchQueries
	rep.Search.CostPerQueryUSD = rates.SearchPerQuery
	rep.Search.CostUSD = round6(float64(l.agg.searchQueries) * rates.SearchPerQuery)

	rep.Scraping.Posts = l.agg.scrapeCalls[ScrapePosts]
	rep.Scraping.Transcripts = l.agg.scrapeCalls[ScrapeTranscripts]
	rep.Scraping.Profiles = l.agg.scrapeCalls[ScrapeProfiles]
	rep.Scraping.TotalCalls = rep.Scraping.Posts + rep.Scraping.Transcripts + rep.Scraping.Profiles
	rep.Scraping.CostPerCallUSD = rates.ScrapingPerCall
	rep.Scraping.CostUSD = round6(float64(rep.Scraping.TotalCalls) * rates.ScrapingPerCall)
	if l.agg.creditsRemaining != nil {
		v := *l.agg.creditsRemaining
		rep.Scraping.CreditsRemaining = &v
	}

	rep.TotalUSD = round6(rep.LLM.CostUSD + rep.Search.CostUSD + rep.Scraping.CostUSD)
	return rep
}

// round6 rounds half-up at the sixth decimal. The epsilon compensates for
// products like 1.25e-5*1e6 landing just under the .5 boundary in float64.
func round6(v float64) float64 {
	return math.Round(v*1e6+1e-9) / 1e6
}
