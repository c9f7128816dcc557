package core

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/analysis"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/costs"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/session"
	"github.com/Sanchay-T/influencer-platform-app-sub009/tools/scrape"
	"github.com/Sanchay-T/influencer-platform-app-sub009/tools/search"
)

// Router maps a named tool call to a collaborator or store operation and
// normalizes the result into a JSON payload. Collaborator failures come back
// as an error field in the payload, never as a dropped call: the model has
// to see them to decide whether to retry or move on.
type Router struct {
	Sessions   session.Store
	SessionID  string
	Keyword    string
	Search     search.Searcher
	Scrape     scrape.Client
	Ledger     *costs.Ledger
	Sandbox    *analysis.Sandbox // nil disables run_analysis_code
	MasterPath string            // read-only path handed to the sandbox
	MaxResults int               // per search call
	OutputCap  int               // analyzer result truncation, in characters
	Logger     *log.Logger
}

// Catalogue declares the fixed tool set offered to the model.
func (rt *Router) Catalogue() []Tool {
	tools := []Tool{
		{Type: "function", Function: ToolFunction{
			Name:        "search_reels",
			Description: "Search for reel URLs matching a query. Returns how many new URLs were added to the session.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"required": ["query"],
				"properties": {
					"query": {"type": "string", "description": "search query, e.g. the keyword plus a qualifier"},
					"limit": {"type": "integer", "description": "max URLs to fetch", "minimum": 1, "maximum": 50}
				}
			}`),
		}},
		{Type: "function", Function: ToolFunction{
			Name:        "hydrate_posts",
			Description: "Fetch caption, owner, views and thumbnail for a batch of reel URLs already in the session. Returns a bounded summary.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"required": ["urls"],
				"properties": {
					"urls": {"type": "array", "items": {"type": "string"}, "minItems": 1}
				}
			}`),
		}},
		{Type: "function", Function: ToolFunction{
			Name:        "hydrate_transcripts",
			Description: "Fetch spoken-word transcripts for a batch of reel URLs. Returns a bounded summary.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"required": ["urls"],
				"properties": {
					"urls": {"type": "array", "items": {"type": "string"}, "minItems": 1}
				}
			}`),
		}},
		{Type: "function", Function: ToolFunction{
			Name:        "hydrate_profiles",
			Description: "Fetch bio and location signals for a batch of owner handles. Use this to verify geography. Returns a bounded summary.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"required": ["handles"],
				"properties": {
					"handles": {"type": "array", "items": {"type": "string"}, "minItems": 1}
				}
			}`),
		}},
		{Type: "function", Function: ToolFunction{
			Name:        "analyze_session",
			Description: "Run a restricted analysis operation against the session table. Supported: 'count [where <field> contains <term>]', 'filter <field> contains <term>', 'summary', 'sample [n]'. Fields: caption, transcript, owner, location, any.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"required": ["operation"],
				"properties": {
					"operation": {"type": "string"}
				}
			}`),
		}},
	}
	if rt.Sandbox != nil {
		tools = append(tools, Tool{Type: "function", Function: ToolFunction{
			Name:        "run_analysis_code",
			Description: "Execute a short Python snippet against read-only CSV snapshots of the session and master tables. The harness provides SESSION_PATH, MASTER_PATH and load_rows(path). Print your findings; stdout is capped.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"required": ["code"],
				"properties": {
					"code": {"type": "string"}
				}
			}`),
		}})
	}
	return tools
}

// Execute runs one tool call and returns the tool message to append to the
// conversation, correlated by the call id. Collaborator failures are folded
// into the payload; the returned error is non-nil only for caller bugs
// (operating on an uninitialized session), which must abort the run.
func (rt *Router) Execute(ctx context.Context, call ToolCall) (Message, error) {
	payload, err := rt.dispatch(ctx, call.Function.Name, call.Function.Arguments)
	if err != nil {
		return Message{}, err
	}
	return Message{Role: "tool", ToolCallID: call.ID, Content: payload}, nil
}

func (rt *Router) dispatch(ctx context.Context, name, args string) (string, error) {
	var out any
	var err error
	switch name {
	case "search_reels":
		out, err = rt.searchReels(ctx, args)
	case "hydrate_posts":
		out, err = rt.hydratePosts(ctx, args)
	case "hydrate_transcripts":
		out, err = rt.hydrateTranscripts(ctx, args)
	case "hydrate_profiles":
		out, err = rt.hydrateProfiles(ctx, args)
	case "analyze_session":
		out, err = rt.analyzeSession(args)
	case "run_analysis_code":
		out, err = rt.runAnalysisCode(ctx, args)
	default:
		err = fmt.Errorf("unknown tool %q", name)
	}
	if err != nil {
		var unknown session.ErrUnknownSession
		if errors.As(err, &unknown) {
			return "", err
		}
		rt.Logger.Printf("tool %s failed: %v", name, err)
		return marshalPayload(map[string]any{"error": err.Error()}), nil
	}
	return marshalPayload(out), nil
}

func (rt *Router) searchReels(ctx context.Context, args string) (any, error) {
	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return nil, fmt.Errorf("bad arguments: %w", err)
	}
	limit := req.Limit
	if limit <= 0 || limit > rt.MaxResults {
		limit = rt.MaxResults
	}

	urls, err := rt.Search.Discover(ctx, req.Query, limit)
	rt.Ledger.Record(costs.Event{SearchQueries: 1})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	added := 0
	now := time.Now().UTC()
	if err := rt.Sessions.Update(rt.SessionID, func(rows []reel.Row) []reel.Row {
		idx := reel.Index(rows)
		added = 0
		for _, u := range urls {
			if _, ok := idx[u]; ok {
				continue
			}
			rows = append(rows, reel.New(u, rt.Keyword, now))
			idx[u] = len(rows) - 1
			added++
		}
		return rows
	}); err != nil {
		return nil, err
	}
	rt.bumpURLCounter()

	return map[string]any{
		"query":      req.Query,
		"found":      len(urls),
		"new_urls":   added,
		"total_rows": rt.rowCount(),
	}, nil
}

func (rt *Router) hydratePosts(ctx context.Context, args string) (any, error) {
	var req struct {
		URLs []string `json:"urls"`
	}
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return nil, fmt.Errorf("bad arguments: %w", err)
	}

	batch, err := rt.Scrape.FetchPosts(ctx, req.URLs)
	rt.Ledger.Record(costs.Event{
		Scrape:           costs.ScrapePosts,
		ScrapeCalls:      len(req.URLs),
		CreditsRemaining: batch.Credits,
	})
	if err != nil {
		return nil, fmt.Errorf("hydrate posts: %w", err)
	}

	now := time.Now().UTC()
	if err := rt.Sessions.Update(rt.SessionID, func(rows []reel.Row) []reel.Row {
		idx := reel.Index(rows)
		for _, p := range batch.Items {
			i, ok := idx[p.URL]
			if !ok {
				continue
			}
			r := &rows[i]
			if p.OwnerHandle != nil {
				r.OwnerHandle = *p.OwnerHandle
			}
			if p.OwnerName != nil {
				r.OwnerName = *p.OwnerName
			}
			if p.Caption != nil {
				r.Caption = *p.Caption
			}
			if p.Views != nil {
				r.Views = *p.Views
			}
			if p.Thumbnail != nil {
				r.Thumbnail = *p.Thumbnail
			}
			if p.TakenAt != nil {
				r.TakenAt = p.TakenAt.Format(time.RFC3339)
			}
			if r.Status == reel.StatusPending {
				r.Status = reel.StatusHydrated
			}
			r.Touch(now)
		}
		return rows
	}); err != nil {
		return nil, err
	}

	return SummarizePosts(batch.Items, rt.Keyword), nil
}

func (rt *Router) hydrateTranscripts(ctx context.Context, args string) (any, error) {
	var req struct {
		URLs []string `json:"urls"`
	}
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return nil, fmt.Errorf("bad arguments: %w", err)
	}

	batch, err := rt.Scrape.FetchTranscripts(ctx, req.URLs)
	rt.Ledger.Record(costs.Event{
		Scrape:           costs.ScrapeTranscripts,
		ScrapeCalls:      len(req.URLs),
		CreditsRemaining: batch.Credits,
	})
	if err != nil {
		return nil, fmt.Errorf("hydrate transcripts: %w", err)
	}

	now := time.Now().UTC()
	if err := rt.Sessions.Update(rt.SessionID, func(rows []reel.Row) []reel.Row {
		idx := reel.Index(rows)
		for _, t := range batch.Items {
			i, ok := idx[t.URL]
			if !ok {
				continue
			}
			r := &rows[i]
			if t.Text != nil {
				r.Transcript = *t.Text
			}
			r.Status = reel.StatusTranscriptFetched
			r.Touch(now)
		}
		return rows
	}); err != nil {
		return nil, err
	}

	return SummarizeTranscripts(batch.Items, rt.Keyword), nil
}

func (rt *Router) hydrateProfiles(ctx context.Context, args string) (any, error) {
	var req struct {
		Handles []string `json:"handles"`
	}
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return nil, fmt.Errorf("bad arguments: %w", err)
	}

	batch, err := rt.Scrape.FetchProfiles(ctx, req.Handles)
	rt.Ledger.Record(costs.Event{
		Scrape:           costs.ScrapeProfiles,
		ScrapeCalls:      len(req.Handles),
		CreditsRemaining: batch.Credits,
	})
	if err != nil {
		return nil, fmt.Errorf("hydrate profiles: %w", err)
	}

	now := time.Now().UTC()
	if err := rt.Sessions.Update(rt.SessionID, func(rows []reel.Row) []reel.Row {
		byHandle := make(map[string][]int)
		for i, r := range rows {
			if r.OwnerHandle != "" {
				byHandle[r.OwnerHandle] = append(byHandle[r.OwnerHandle], i)
			}
		}
		for _, p := range batch.Items {
			for _, i := range byHandle[p.Handle] {
				r := &rows[i]
				if p.FullName != nil && r.OwnerName == "" {
					r.OwnerName = *p.FullName
				}
				if p.LocationName != nil {
					r.LocationName = *p.LocationName
				}
				r.Touch(now)
			}
		}
		return rows
	}); err != nil {
		return nil, err
	}

	return SummarizeProfiles(batch.Items, rt.Keyword), nil
}

func (rt *Router) analyzeSession(args string) (any, error) {
	var req struct {
		Operation string `json:"operation"`
	}
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return nil, fmt.Errorf("bad arguments: %w", err)
	}

	cmd, err := analysis.Parse(req.Operation)
	if err != nil {
		return nil, fmt.Errorf("unsupported operation: %w", err)
	}
	rows, err := rt.Sessions.Rows(rt.SessionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"operation": req.Operation,
		"result":    analysis.Evaluate(cmd, rows, rt.OutputCap),
	}, nil
}

func (rt *Router) runAnalysisCode(ctx context.Context, args string) (any, error) {
	if rt.Sandbox == nil {
		return nil, fmt.Errorf("sandboxed analysis is disabled")
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal([]byte(args), &req); err != nil {
		return nil, fmt.Errorf("bad arguments: %w", err)
	}

	sessionPath, cleanup, err := rt.snapshotSession()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	res, err := rt.Sandbox.Run(ctx, req.Code, sessionPath, rt.MasterPath)
	switch {
	case errors.Is(err, analysis.ErrTimeout):
		return map[string]any{"error": "Timeout", "stderr": res.Stderr}, nil
	case err != nil:
		var exitErr analysis.ExitError
		if errors.As(err, &exitErr) {
			return map[string]any{
				"error":  fmt.Sprintf("Process exited with code %d", exitErr.Code),
				"stderr": exitErr.Stderr,
			}, nil
		}
		var spawnErr analysis.SpawnError
		if errors.As(err, &spawnErr) {
			return map[string]any{"error": "Failed to spawn: " + spawnErr.Error()}, nil
		}
		return nil, err
	}
	return res, nil
}

// snapshotSession dumps the session rows to a temp CSV so the sandbox never
// holds a handle to live store state.
func (rt *Router) snapshotSession() (string, func(), error) {
	rows, err := rt.Sessions.Rows(rt.SessionID)
	if err != nil {
		return "", nil, err
	}
	dir, err := os.MkdirTemp("", "reelagent-analysis-*")
	if err != nil {
		return "", nil, fmt.Errorf("snapshot dir: %w", err)
	}
	path := filepath.Join(dir, "session.csv")
	f, err := os.Create(path)
	if err != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("snapshot file: %w", err)
	}
	w := csv.NewWriter(f)
	_ = w.Write(reel.CSVHeader)
	for _, r := range rows {
		_ = w.Write(reel.EncodeCSV(r))
	}
	w.Flush()
	if err := f.Close(); err != nil {
		os.RemoveAll(dir)
		return "", nil, err
	}
	return path, func() { os.RemoveAll(dir) }, nil
}

func (rt *Router) bumpURLCounter() {
	rows, err := rt.Sessions.Rows(rt.SessionID)
	if err != nil {
		return
	}
	n := len(rows)
	_ = rt.Sessions.PatchMetadata(rt.SessionID, session.MetadataPatch{TotalURLs: &n})
}

func (rt *Router) rowCount() int {
	rows, err := rt.Sessions.Rows(rt.SessionID)
	if err != nil {
		return 0
	}
	return len(rows)
}

func marshalPayload(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error": "encoding tool result: %s"}`, err)
	}
	return string(b)
}
