package redis_session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/session"
)

// Store keeps each session as two redis keys: a JSON array of rows and a
// JSON metadata blob. Writes replace the row blob wholesale, matching the
// Store contract's replace-the-collection semantics.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(addr, password string, db int, ttl time.Duration) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{client: rdb, ttl: ttl}
}

func rowsKey(id string) string { return fmt.Sprintf("reelagent:session:%s:rows", id) }
func metaKey(id string) string { return fmt.Sprintf("reelagent:session:%s:meta", id) }

func (s *Store) Init(id, keyword string, start time.Time) error {
	if id == "" {
		return fmt.Errorf("session id must not be empty")
	}
	ctx := context.Background()
	meta := session.Metadata{
		Keyword:   keyword,
		StartTime: start,
		Status:    session.RunStatusRunning,
	}
	if err := s.writeMeta(ctx, id, meta); err != nil {
		return err
	}
	return s.writeRows(ctx, id, nil)
}

func (s *Store) Rows(id string) ([]reel.Row, error) {
	return s.readRows(context.Background(), id)
}

func (s *Store) SetRows(id string, rows []reel.Row) error {
	ctx := context.Background()
	if _, err := s.readMeta(ctx, id); err != nil {
		return err
	}
	return s.writeRows(ctx, id, rows)
}

func (s *Store) Update(id string, mutate func(rows []reel.Row) []reel.Row) error {
	ctx := context.Background()
	rows, err := s.readRows(ctx, id)
	if err != nil {
		return err
	}
	return s.writeRows(ctx, id, mutate(rows))
}

func (s *Store) Metadata(id string) (session.Metadata, error) {
	return s.readMeta(context.Background(), id)
}

func (s *Store) PatchMetadata(id string, patch session.MetadataPatch) error {
	ctx := context.Background()
	meta, err := s.readMeta(ctx, id)
	if err != nil {
		return err
	}
	patch.Apply(&meta)
	return s.writeMeta(ctx, id, meta)
}

func (s *Store) Finalize(id string, success bool, end time.Time) error {
	ctx := context.Background()
	meta, err := s.readMeta(ctx, id)
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
	return s.writeMeta(ctx, id, meta)
}

func (s *Store) readRows(ctx context.Context, id string) ([]reel.Row, error) {
	val, err := s.client.Get(ctx, rowsKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrUnknownSession{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("reading session rows: %w", err)
	}
	var rows []reel.Row
	if err := json.Unmarshal([]byte(val), &rows); err != nil {
		return nil, fmt.Errorf("decoding session rows: %w", err)
	}
	return rows, nil
}

func (s *Store) writeRows(ctx context.Context, id string, rows []reel.Row) error {
	if rows == nil {
		rows = []reel.Row{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, rowsKey(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing session rows: %w", err)
	}
	return nil
}

func (s *Store) readMeta(ctx context.Context, id string) (session.Metadata, error) {
	val, err := s.client.Get(ctx, metaKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return session.Metadata{}, session.ErrUnknownSession{ID: id}
	}
	if err != nil {
		return session.Metadata{}, fmt.Errorf("reading session metadata: %w", err)
	}
	var meta session.Metadata
	if err := json.Unmarshal([]byte(val), &meta); err != nil {
		return session.Metadata{}, fmt.Errorf("decoding session metadata: %w", err)
	}
	return meta, nil
}

func (s *Store) writeMeta(ctx context.Context, id string, meta session.Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, metaKey(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing session metadata: %w", err)
	}
	return nil
}
