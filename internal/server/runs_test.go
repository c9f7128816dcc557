package server

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newTestRunsHandler() *RunsHandler {
	return NewRunsHandler(nil, nil, log.New(os.Stderr, "[TEST] ", log.LstdFlags))
}

func seedRun(h *RunsHandler, id string) *runState {
	st := &runState{
		ID:        id,
		Keyword:   "fitness trainer",
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	h.mu.Lock()
	h.runs[id] = st
	h.mu.Unlock()
	return st
}

func getRun(t *testing.T, h *RunsHandler, id string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+id, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/runs/:id")
	c.SetParamNames("id")
	c.SetParamValues(id)
	if err := h.Get(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestGetUnknownRun(t *testing.T) {
	h := newTestRunsHandler()
	rec := getRun(t, h, "missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateRejectsEmptyKeyword(t *testing.T) {
	h := newTestRunsHandler()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{"keyword":"  "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.Create(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

// Polling a run must not observe the completion write half-applied: handlers
// serialize a copy taken under the lock, never the shared state.
func TestGetWhileRunCompletes(t *testing.T) {
	h := newTestRunsHandler()
	st := seedRun(h, "run-1")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			end := time.Now().UTC()
			h.mu.Lock()
			if st.Status == "running" {
				st.Status = "completed"
				st.EndedAt = &end
			} else {
				st.Status = "running"
				st.EndedAt = nil
			}
			h.mu.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			rec := getRun(t, h, "run-1")
			if rec.Code != http.StatusOK {
				t.Errorf("expected 200, got %d", rec.Code)
				return
			}
			var got runState
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Errorf("decoding run state: %v", err)
				return
			}
			if got.Status == "completed" && got.EndedAt == nil {
				t.Error("completed run serialized without an end time")
				return
			}
		}
	}()
	wg.Wait()
}

func TestListSortsNewestFirst(t *testing.T) {
	h := newTestRunsHandler()
	old := seedRun(h, "run-old")
	old.StartedAt = time.Now().UTC().Add(-time.Hour)
	seedRun(h, "run-new")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []runState
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "run-new" || got[1].ID != "run-old" {
		t.Fatalf("unexpected order: %+v", got)
	}
}
