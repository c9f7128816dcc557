package master

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
)

// CSVStore backs the master dataset with a single flat CSV file. A missing
// file reads as an empty dataset so a fresh deployment needs no setup step.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

func NewCSVStore(path string) (*CSVStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating master data dir: %w", err)
	}
	return &CSVStore{path: path}, nil
}

func (s *CSVStore) Load() ([]reel.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening master table: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading master table: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	var rows []reel.Row
	for _, rec := range records[1:] {
		row, err := reel.DecodeCSV(rec)
		if err != nil {
			return nil, fmt.Errorf("master table: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *CSVStore) Replace(rows []reel.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("writing master table: %w", err)
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
	return os.Rename(tmp, s.path)
}
