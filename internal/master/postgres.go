package master

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
)

// PostgresStore backs the master dataset with a single postgres table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(url string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS master_reels (
    url TEXT PRIMARY KEY,
    keyword TEXT NOT NULL,
    owner_handle TEXT,
    owner_name TEXT,
    caption TEXT,
    transcript TEXT,
    views BIGINT,
    thumbnail TEXT,
    location_name TEXT,
    us_decision TEXT,
    relevance_decision TEXT,
    discovered_at TIMESTAMPTZ,
    updated_at TIMESTAMPTZ,
    status TEXT
);
`)
	return err
}

func (s *PostgresStore) Load() ([]reel.Row, error) {
	rows, err := s.db.Query(`SELECT url, keyword, owner_handle, owner_name, caption, transcript,
        views, thumbnail, location_name, us_decision, relevance_decision,
        discovered_at, updated_at, status FROM master_reels ORDER BY discovered_at`)
	if err != nil {
		return nil, fmt.Errorf("querying master table: %w", err)
	}
	defer rows.Close()

	var out []reel.Row
	for rows.Next() {
		var (
			r                       reel.Row
			handle, name, caption   sql.NullString
			transcript, thumb, loc  sql.NullString
			usDec, relDec, status   sql.NullString
			views                   sql.NullInt64
			discoveredAt, updatedAt sql.NullTime
		)
		if err := rows.Scan(&r.URL, &r.Keyword, &handle, &name, &caption, &transcript,
			&views, &thumb, &loc, &usDec, &relDec, &discoveredAt, &updatedAt, &status); err != nil {
			return nil, fmt.Errorf("scanning master row: %w", err)
		}
		r.OwnerHandle = handle.String
		r.OwnerName = name.String
		r.Caption = caption.String
		r.Transcript = transcript.String
		r.Views = views.Int64
		r.Thumbnail = thumb.String
		r.LocationName = loc.String
		r.USDecision = reel.USDecision(usDec.String)
		r.Relevance = reel.RelevanceDecision(relDec.String)
		r.DiscoveredAt = discoveredAt.Time
		r.UpdatedAt = updatedAt.Time
		r.Status = reel.Status(status.String)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Replace(rows []reel.Row) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning master rewrite: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM master_reels`); err != nil {
		return fmt.Errorf("clearing master table: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO master_reels (
        url, keyword, owner_handle, owner_name, caption, transcript,
        views, thumbnail, location_name, us_decision, relevance_decision,
        discovered_at, updated_at, status
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`)
	if err != nil {
		return fmt.Errorf("preparing master insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.URL, r.Keyword, r.OwnerHandle, r.OwnerName, r.Caption, r.Transcript,
			r.Views, r.Thumbnail, r.LocationName, string(r.USDecision), string(r.Relevance),
			nullableTime(r.DiscoveredAt), nullableTime(r.UpdatedAt), string(r.Status)); err != nil {
			return fmt.Errorf("inserting master row %s: %w", r.URL, err)
		}
	}
	return tx.Commit()
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
