package inmemory

import (
	"fmt"
	"sync"
	"time"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/session"
)

type entry struct {
	rows []reel.Row
	meta session.Metadata
}

// Store keeps each session's rows and metadata in process memory.
// Sessions are isolated by key; the map itself is guarded by a single
// mutex so concurrent runs never observe partial writes.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*entry)}
}

func (s *Store) Init(id, keyword string, start time.Time) error {
	if id == "" {
		return fmt.Errorf("session id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &entry{
		meta: session.Metadata{
			Keyword:   keyword,
			StartTime: start,
			Status:    session.RunStatusRunning,
		},
	}
	return nil
}

func (s *Store) lookup(id string) (*entry, error) {
	e, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrUnknownSession{ID: id}
	}
	return e, nil
}

func (s *Store) Rows(id string) ([]reel.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return reel.Clone(e.rows), nil
}

func (s *Store) SetRows(id string, rows []reel.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.rows = reel.Clone(rows)
	return nil
}

func (s *Store) Update(id string, mutate func(rows []reel.Row) []reel.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.rows = reel.Clone(mutate(reel.Clone(e.rows)))
	return nil
}

func (s *Store) Metadata(id string) (session.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, err := s.lookup(id)
	if err != nil {
		return session.Metadata{}, err
	}
	return e.meta, nil
}

func (s *Store) PatchMetadata(id string, patch session.MetadataPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	patch.Apply(&e.meta)
	return nil
}

func (s *Store) Finalize(id string, success bool, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	if e.meta.Status != session.RunStatusRunning {
		return fmt.Errorf("session %q already finalized as %s", id, e.meta.Status)
	}
	if success {
		e.meta.Status = session.RunStatusCompleted
	} else {
		e.meta.Status = session.RunStatusFailed
	}
	e.meta.EndTime = end
	return nil
}
