package session

import (
	"fmt"
	"time"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
)

// RunStatus reflects the coarse lifecycle of a session.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Metadata carries the summary counters for a session.
type Metadata struct {
	Keyword        string    `json:"keyword"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time,omitempty"`
	TotalURLs      int       `json:"total_urls"`
	TotalProcessed int       `json:"total_processed"`
	TotalRelevant  int       `json:"total_relevant"`
	TotalUS        int       `json:"total_us"`
	Status         RunStatus `json:"status"`
}

// MetadataPatch holds optional counter updates. Nil fields are left as-is.
type MetadataPatch struct {
	TotalURLs      *int
	TotalProcessed *int
	TotalRelevant  *int
	TotalUS        *int
}

// Apply overlays non-nil fields of the patch onto m.
func (p MetadataPatch) Apply(m *Metadata) {
	if p.TotalURLs != nil {
		m.TotalURLs = *p.TotalURLs
	}
	if p.TotalProcessed != nil {
		m.TotalProcessed = *p.TotalProcessed
	}
	if p.TotalRelevant != nil {
		m.TotalRelevant = *p.TotalRelevant
	}
	if p.TotalUS != nil {
		m.TotalUS = *p.TotalUS
	}
}

// ErrUnknownSession is returned when an operation names a session that was
// never initialized. This is a caller bug, not an environmental condition,
// so stores surface it instead of silently creating state.
type ErrUnknownSession struct {
	ID string
}

func (e ErrUnknownSession) Error() string {
	return fmt.Sprintf("session %q has not been initialized", e.ID)
}

// Store is the per-run table of discovered rows, keyed by session id.
// All reads return defensive copies; all writes replace the row collection
// atomically from the caller's point of view.
type Store interface {
	// Init creates an empty session. Calling Init twice for the same id
	// resets the session to empty.
	Init(id string, keyword string, start time.Time) error
	// Rows returns a copy of the session's rows.
	Rows(id string) ([]reel.Row, error)
	// SetRows replaces the session's rows wholesale.
	SetRows(id string, rows []reel.Row) error
	// Update applies a pure mutator to a fresh snapshot of the rows and
	// stores the result. Appending URLs, attaching hydration data and
	// applying geography decisions are all expressed through this.
	Update(id string, mutate func(rows []reel.Row) []reel.Row) error
	// Metadata returns a copy of the session's metadata.
	Metadata(id string) (Metadata, error)
	// PatchMetadata overlays counter updates onto the metadata.
	PatchMetadata(id string, patch MetadataPatch) error
	// Finalize marks the session completed or failed and stamps EndTime.
	// A session is finalized exactly once; later calls are rejected.
	Finalize(id string, success bool, end time.Time) error
}
