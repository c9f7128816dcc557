package reel

import (
	"fmt"
	"strconv"
	"time"
)

// CSVHeader is the fixed column set of the persisted row table. The column
// order is part of the on-disk contract; url is the key.
var CSVHeader = []string{
	"url", "keyword", "owner_handle", "owner_name", "caption", "transcript",
	"views", "thumbnail", "location_name", "us_decision", "relevance_decision",
	"discovered_at", "updated_at", "status",
}

// EncodeCSV renders a row in CSVHeader column order.
func EncodeCSV(r Row) []string {
	return []string{
		r.URL, r.Keyword, r.OwnerHandle, r.OwnerName, r.Caption, r.Transcript,
		strconv.FormatInt(r.Views, 10), r.Thumbnail, r.LocationName,
		string(r.USDecision), string(r.Relevance),
		formatCSVTime(r.DiscoveredAt), formatCSVTime(r.UpdatedAt), string(r.Status),
	}
}

// DecodeCSV parses a record in CSVHeader column order.
func DecodeCSV(rec []string) (Row, error) {
	if len(rec) != len(CSVHeader) {
		return Row{}, fmt.Errorf("expected %d columns, got %d", len(CSVHeader), len(rec))
	}
	views, err := strconv.ParseInt(rec[6], 10, 64)
	if err != nil {
		return Row{}, fmt.Errorf("bad views value %q: %w", rec[6], err)
	}
	discovered, err := parseCSVTime(rec[11])
	if err != nil {
		return Row{}, fmt.Errorf("bad discovered_at %q: %w", rec[11], err)
	}
	updated, err := parseCSVTime(rec[12])
	if err != nil {
		return Row{}, fmt.Errorf("bad updated_at %q: %w", rec[12], err)
	}
	return Row{
		URL:          rec[0],
		Keyword:      rec[1],
		OwnerHandle:  rec[2],
		OwnerName:    rec[3],
		Caption:      rec[4],
		Transcript:   rec[5],
		Views:        views,
		Thumbnail:    rec[7],
		LocationName: rec[8],
		USDecision:   USDecision(rec[9]),
		Relevance:    RelevanceDecision(rec[10]),
		DiscoveredAt: discovered,
		UpdatedAt:    updated,
		Status:       Status(rec[13]),
	}, nil
}

func formatCSVTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseCSVTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
