package server

import (
	"context"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/core"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/master"
)

// RunsHandler tracks agent runs submitted through the API. Runs execute in
// the background; clients poll for completion.
type RunsHandler struct {
	orch   *core.Orchestrator
	merger *master.Engine
	logger *log.Logger

	mu   sync.RWMutex
	runs map[string]*runState
}

type runState struct {
	ID        string          `json:"id"`
	Keyword   string          `json:"keyword"`
	Status    string          `json:"status"` // running, completed, failed
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Result    *core.RunResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func NewRunsHandler(orch *core.Orchestrator, merger *master.Engine, logger *log.Logger) *RunsHandler {
	return &RunsHandler{
		orch:   orch,
		merger: merger,
		logger: logger,
		runs:   make(map[string]*runState),
	}
}

type createRunRequest struct {
	Keyword string `json:"keyword"`
}

// Create starts a run for a keyword and returns its handle immediately.
func (h *RunsHandler) Create(c echo.Context) error {
	var req createRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Keyword = strings.TrimSpace(req.Keyword)
	if req.Keyword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "keyword is required")
	}

	st := &runState{
		ID:        uuid.New().String(),
		Keyword:   req.Keyword,
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	h.mu.Lock()
	h.runs[st.ID] = st
	snap := *st
	h.mu.Unlock()

	go h.execute(st)

	return c.JSON(http.StatusAccepted, snap)
}

func (h *RunsHandler) execute(st *runState) {
	res, err := h.orch.Run(context.Background(), st.Keyword)
	end := time.Now().UTC()

	h.mu.Lock()
	defer h.mu.Unlock()
	st.EndedAt = &end
	if err != nil {
		st.Status = "failed"
		st.Error = err.Error()
		h.logger.Printf("run %s (%q) failed: %v", st.ID, st.Keyword, err)
		return
	}
	st.Status = "completed"
	st.Result = &res
}

// Get returns one run's state. Handlers serialize copies taken under the
// lock: execute mutates the shared state while clients poll.
func (h *RunsHandler) Get(c echo.Context) error {
	h.mu.RLock()
	st, ok := h.runs[c.Param("id")]
	var snap runState
	if ok {
		snap = *st
	}
	h.mu.RUnlock()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown run")
	}
	return c.JSON(http.StatusOK, snap)
}

// List returns all runs, newest first.
func (h *RunsHandler) List(c echo.Context) error {
	h.mu.RLock()
	out := make([]runState, 0, len(h.runs))
	for _, st := range h.runs {
		out = append(out, *st)
	}
	h.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return c.JSON(http.StatusOK, out)
}

// Audit reports duplicate URLs in the master dataset. A clean dataset is
// the merge engine's core invariant, so this should always be empty.
func (h *RunsHandler) Audit(c echo.Context) error {
	groups, err := h.merger.Audit()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, auditResponse{Duplicates: groups, Clean: len(groups) == 0})
}
