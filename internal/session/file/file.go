package file

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/session"
)

// Store persists each session as a CSV table plus a JSON metadata sidecar
// under dataDir. Reads parse the full file; writes rewrite it wholesale,
// which keeps the replace-the-collection semantics of the Store contract.
type Store struct {
	dataDir string
	mu      sync.Mutex
}

func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session data dir: %w", err)
	}
	return &Store{dataDir: dataDir}, nil
}

func (s *Store) rowsPath(id string) string {
	return filepath.Join(s.dataDir, id+".csv")
}

func (s *Store) metaPath(id string) string {
	return filepath.Join(s.dataDir, id+".meta.json")
}

func (s *Store) Init(id, keyword string, start time.Time) error {
	if id == "" {
		return fmt.Errorf("session id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeRows(id, nil); err != nil {
		return err
	}
	return s.writeMeta(id, session.Metadata{
		Keyword:   keyword,
		StartTime: start,
		Status:    session.RunStatusRunning,
	})
}

func (s *Store) Rows(id string) ([]reel.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readRows(id)
}

func (s *Store) SetRows(id string, rows []reel.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.readMeta(id); err != nil {
		return err
	}
	return s.writeRows(id, rows)
}

func (s *Store) Update(id string, mutate func(rows []reel.Row) []reel.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.readRows(id)
	if err != nil {
		return err
	}
	return s.writeRows(id, mutate(rows))
}

func (s *Store) Metadata(id string) (session.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMeta(id)
}

func (s *Store) PatchMetadata(id string, patch session.MetadataPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.readMeta(id)
	if err != nil {
		return err
	}
	patch.Apply(&meta)
	return s.writeMeta(id, meta)
}

func (s *Store) Finalize(id string, success bool, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.readMeta(id)
	if err != nil {
		return err
	}
	if meta.Status != session.RunStatusRunning {
		return fmt.Errorf("session %q already finalized as %s", id, meta.Status)
	}
	if success {
		meta.Status = session.RunStatusCompleted
	} else {
		meta.Status = session.RunStatusFailed
	}
	meta.EndTime = end
	return s.writeMeta(id, meta)
}

func (s *Store) readRows(id string) ([]reel.Row, error) {
	f, err := os.Open(s.rowsPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, session.ErrUnknownSession{ID: id}
		}
		return nil, fmt.Errorf("opening session table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading session table: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	var rows []reel.Row
	for _, rec := range records[1:] {
		row, err := reel.DecodeCSV(rec)
		if err != nil {
			return nil, fmt.Errorf("session table %s: %w", id, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Store) writeRows(id string, rows []reel.Row) error {
	tmp := s.rowsPath(id) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("writing session table: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(reel.CSVHeader); err != nil {
		f.Close()
		return err
	}
	for _, row := range rows {
		if err := w.Write(reel.EncodeCSV(row)); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.rowsPath(id))
}

func (s *Store) readMeta(id string) (session.Metadata, error) {
	b, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return session.Metadata{}, session.ErrUnknownSession{ID: id}
		}
		return session.Metadata{}, fmt.Errorf("reading session metadata: %w", err)
	}
	var meta session.Metadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return session.Metadata{}, fmt.Errorf("decoding session metadata: %w", err)
	}
	return meta, nil
}

func (s *Store) writeMeta(id string, meta session.Metadata) error {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.metaPath(id), b, 0o644)
}
