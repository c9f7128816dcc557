package inmemory

import (
	"errors"
	"testing"
	"time"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/session"
)

func TestUninitializedSessionFailsFast(t *testing.T) {
	store := NewStore()

	_, err := store.Rows("nope")
	var unknown session.ErrUnknownSession
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
	if unknown.ID != "nope" {
		t.Fatalf("expected error to carry session id, got %q", unknown.ID)
	}
	if err := store.SetRows("nope", nil); !errors.As(err, &unknown) {
		t.Fatalf("SetRows on unknown session: expected ErrUnknownSession, got %v", err)
	}
	if err := store.Finalize("nope", true, time.Now()); !errors.As(err, &unknown) {
		t.Fatalf("Finalize on unknown session: expected ErrUnknownSession, got %v", err)
	}
}

func TestRowsReturnsDefensiveCopy(t *testing.T) {
	store := NewStore()
	now := time.Now()
	if err := store.Init("s1", "fitness", now); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := store.SetRows("s1", []reel.Row{reel.New("https://a", "fitness", now)}); err != nil {
		t.Fatalf("SetRows: %v", err)
	}

	rows, err := store.Rows("s1")
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	rows[0].Caption = "mutated by caller"

	again, _ := store.Rows("s1")
	if again[0].Caption != "" {
		t.Fatalf("caller mutation leaked into store: %q", again[0].Caption)
	}
}

func TestUpdateAppliesMutatorToSnapshot(t *testing.T) {
	store := NewStore()
	now := time.Now()
	if err := store.Init("s1", "fitness", now); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := store.SetRows("s1", []reel.Row{reel.New("https://a", "fitness", now)}); err != nil {
		t.Fatalf("SetRows: %v", err)
	}

	err := store.Update("s1", func(rows []reel.Row) []reel.Row {
		return append(rows, reel.New("https://b", "fitness", now))
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	rows, _ := store.Rows("s1")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].URL != "https://b" {
		t.Fatalf("expected appended row, got %q", rows[1].URL)
	}
}

func TestFinalizeExactlyOnce(t *testing.T) {
	store := NewStore()
	now := time.Now()
	if err := store.Init("s1", "fitness", now); err != nil {
		t.Fatalf("Init: %v", err)
	}
	end := now.Add(time.Minute)
	if err := store.Finalize("s1", true, end); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	meta, _ := store.Metadata("s1")
	if meta.Status != session.RunStatusCompleted {
		t.Fatalf("expected completed, got %s", meta.Status)
	}
	if !meta.EndTime.Equal(end) {
		t.Fatalf("expected end time %v, got %v", end, meta.EndTime)
	}
	if err := store.Finalize("s1", false, end); err == nil {
		t.Fatal("expected second Finalize to fail")
	}
}

func TestPatchMetadataOverlaysCounters(t *testing.T) {
	store := NewStore()
	if err := store.Init("s1", "fitness", time.Now()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	urls, relevant := 12, 7
	if err := store.PatchMetadata("s1", session.MetadataPatch{TotalURLs: &urls, TotalRelevant: &relevant}); err != nil {
		t.Fatalf("PatchMetadata: %v", err)
	}
	meta, _ := store.Metadata("s1")
	if meta.TotalURLs != 12 || meta.TotalRelevant != 7 {
		t.Fatalf("unexpected counters: %+v", meta)
	}
	if meta.Keyword != "fitness" {
		t.Fatalf("patch must not clobber keyword, got %q", meta.Keyword)
	}
}
