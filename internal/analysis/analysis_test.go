package analysis

import (
	"strings"
	"testing"
	"time"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
)

func testRows() []reel.Row {
	now := time.Now()
	mk := func(url, owner, caption, transcript string, views int64) reel.Row {
		r := reel.New(url, "fitness trainer", now)
		r.OwnerHandle = owner
		r.Caption = caption
		r.Transcript = transcript
		r.Views = views
		if caption != "" {
			r.Status = reel.StatusHydrated
		}
		if transcript != "" {
			r.Status = reel.StatusTranscriptFetched
		}
		return r
	}
	return []reel.Row{
		mk("https://a", "coach_amy", "leg day routine", "welcome to fitness with amy", 1000),
		mk("https://b", "coach_amy", "arm day", "", 500),
		mk("https://c", "lifter_bob", "", "bob here, certified trainer", 2500),
		mk("https://d", "yogi_cat", "morning yoga flow", "", 800),
	}
}

func TestParseCommands(t *testing.T) {
	cases := []struct {
		op   string
		want Command
	}{
		{"count", Count{}},
		{"count where transcript contains fitness", Count{Filter: Filter{Field: FieldTranscript, Contains: "fitness"}}},
		{"filter caption contains leg day", FilterRows{Filter: Filter{Field: FieldCaption, Contains: "leg day"}}},
		{"summary", Summary{}},
		{"sample", Sample{N: 5}},
		{"sample 3", Sample{N: 3}},
		{"COUNT WHERE owner CONTAINS amy", Count{Filter: Filter{Field: FieldOwner, Contains: "amy"}}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.op)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.op, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q): got %#v want %#v", tc.op, got, tc.want)
		}
	}
}

func TestParseRejectsMalformedOperations(t *testing.T) {
	for _, op := range []string{
		"",
		"delete everything",
		"count transcript fitness",
		"filter transcript",
		"filter sentiment contains happy",
		"sample zero",
		"sample -1",
		"summary please",
	} {
		if _, err := Parse(op); err == nil {
			t.Fatalf("Parse(%q): expected error", op)
		}
	}
}

func TestEvaluateCount(t *testing.T) {
	cmd, _ := Parse("count where transcript contains fitness")
	got := Evaluate(cmd, testRows(), 2000)
	if got != "1 of 4 rows match" {
		t.Fatalf("unexpected count output: %q", got)
	}
}

func TestEvaluateFilterListsURLs(t *testing.T) {
	cmd, _ := Parse("filter owner contains coach_amy")
	got := Evaluate(cmd, testRows(), 2000)
	if !strings.HasPrefix(got, "2 rows match:") {
		t.Fatalf("unexpected filter output: %q", got)
	}
	if !strings.Contains(got, "https://a") || !strings.Contains(got, "https://b") {
		t.Fatalf("missing urls in output: %q", got)
	}
}

func TestEvaluateSummaryIsDeterministic(t *testing.T) {
	rows := testRows()
	first := Evaluate(Summary{}, rows, 2000)
	second := Evaluate(Summary{}, rows, 2000)
	if first != second {
		t.Fatalf("summary not deterministic:\n%q\n%q", first, second)
	}
	if !strings.Contains(first, "rows=4") || !strings.Contains(first, "distinct_owners=3") {
		t.Fatalf("unexpected summary: %q", first)
	}
}

func TestEvaluateSamplePrefersDistinctOwners(t *testing.T) {
	got := Evaluate(Sample{N: 3}, testRows(), 2000)
	for _, owner := range []string{"coach_amy", "lifter_bob", "yogi_cat"} {
		if !strings.Contains(got, owner) {
			t.Fatalf("sample missing owner %s: %q", owner, got)
		}
	}
	// coach_amy has two rows but only one slot while other owners wait
	if strings.Count(got, "coach_amy") != 1 {
		t.Fatalf("sample repeated an owner before covering all: %q", got)
	}
}

func TestEvaluateOutputCap(t *testing.T) {
	rows := testRows()
	got := Evaluate(FilterRows{}, rows, 20)
	if !strings.HasSuffix(got, "[output truncated]") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
	if len(got) > 20+len("\n[output truncated]") {
		t.Fatalf("output exceeds cap: %d bytes", len(got))
	}
}
