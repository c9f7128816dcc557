// Package analysis answers small questions about a session's rows. The
// in-process evaluator handles a fixed command grammar with no code
// execution; the subprocess sandbox runs arbitrary snippets under a hard
// timeout and output cap.
package analysis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
)

// Field names a row attribute a filter can inspect.
type Field string

const (
	FieldCaption    Field = "caption"
	FieldTranscript Field = "transcript"
	FieldOwner      Field = "owner"
	FieldLocation   Field = "location"
	FieldAny        Field = "any"
)

// Filter matches rows whose field contains a term, case-insensitively.
// A zero Filter matches every row.
type Filter struct {
	Field    Field
	Contains string
}

// Matches reports whether the row satisfies the filter.
func (f Filter) Matches(r reel.Row) bool {
	if f.Contains == "" {
		return true
	}
	term := strings.ToLower(f.Contains)
	has := func(s string) bool { return strings.Contains(strings.ToLower(s), term) }
	switch f.Field {
	case FieldCaption:
		return has(r.Caption)
	case FieldTranscript:
		return has(r.Transcript)
	case FieldOwner:
		return has(r.OwnerHandle) || has(r.OwnerName)
	case FieldLocation:
		return has(r.LocationName)
	default:
		return has(r.Caption) || has(r.Transcript) || has(r.OwnerHandle) || has(r.LocationName)
	}
}

// Command is one analyzer operation. The set of variants is closed so
// behavior is enumerable and testable.
type Command interface {
	isCommand()
}

// Count reports how many rows match a filter.
type Count struct {
	Filter Filter
}

// FilterRows lists the URLs of rows matching a filter.
type FilterRows struct {
	Filter Filter
}

// Summary reports aggregate statistics over the whole table.
type Summary struct{}

// Sample lists up to N representative rows.
type Sample struct {
	N int
}

func (Count) isCommand()      {}
func (FilterRows) isCommand() {}
func (Summary) isCommand()    {}
func (Sample) isCommand()     {}

// Parse turns an operation string into a Command. The grammar is
// deliberately narrow:
//
//	count [where <field> contains <term>]
//	filter <field> contains <term>
//	summary
//	sample [n]
//
// where <field> is one of caption, transcript, owner, location, any.
func Parse(op string) (Command, error) {
	words := strings.Fields(strings.TrimSpace(op))
	if len(words) == 0 {
		return nil, fmt.Errorf("empty operation")
	}
	switch strings.ToLower(words[0]) {
	case "count":
		if len(words) == 1 {
			return Count{}, nil
		}
		f, err := parseFilter(words[1:], true)
		if err != nil {
			return nil, fmt.Errorf("count: %w", err)
		}
		return Count{Filter: f}, nil
	case "filter":
		f, err := parseFilter(words[1:], false)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		return FilterRows{Filter: f}, nil
	case "summary":
		if len(words) != 1 {
			return nil, fmt.Errorf("summary takes no arguments")
		}
		return Summary{}, nil
	case "sample":
		n := 5
		if len(words) > 2 {
			return nil, fmt.Errorf("sample takes at most one argument")
		}
		if len(words) == 2 {
			v, err := strconv.Atoi(words[1])
			if err != nil || v <= 0 {
				return nil, fmt.Errorf("sample size must be a positive integer, got %q", words[1])
			}
			n = v
		}
		return Sample{N: n}, nil
	default:
		return nil, fmt.Errorf("unsupported operation %q (expected count, filter, summary or sample)", words[0])
	}
}

func parseFilter(words []string, leadingWhere bool) (Filter, error) {
	if leadingWhere {
		if len(words) == 0 || strings.ToLower(words[0]) != "where" {
			return Filter{}, fmt.Errorf("expected 'where <field> contains <term>'")
		}
		words = words[1:]
	}
	if len(words) < 3 || strings.ToLower(words[1]) != "contains" {
		return Filter{}, fmt.Errorf("expected '<field> contains <term>'")
	}
	field := Field(strings.ToLower(words[0]))
	switch field {
	case FieldCaption, FieldTranscript, FieldOwner, FieldLocation, FieldAny:
	default:
		return Filter{}, fmt.Errorf("unknown field %q", words[0])
	}
	return Filter{Field: field, Contains: strings.Join(words[2:], " ")}, nil
}

// Evaluate runs a command against the rows and renders a capped text
// answer. Pure: the same rows and command always yield the same output.
func Evaluate(cmd Command, rows []reel.Row, outputLimit int) string {
	var out string
	switch c := cmd.(type) {
	case Count:
		n := 0
		for _, r := range rows {
			if c.Filter.Matches(r) {
				n++
			}
		}
		out = fmt.Sprintf("%d of %d rows match", n, len(rows))
	case FilterRows:
		var urls []string
		for _, r := range rows {
			if c.Filter.Matches(r) {
				urls = append(urls, r.URL)
			}
		}
		if len(urls) == 0 {
			out = "no rows match"
		} else {
			out = fmt.Sprintf("%d rows match:\n%s", len(urls), strings.Join(urls, "\n"))
		}
	case Summary:
		out = summarize(rows)
	case Sample:
		out = sample(rows, c.N)
	}
	return truncate(out, outputLimit)
}

func summarize(rows []reel.Row) string {
	if len(rows) == 0 {
		return "table is empty"
	}
	var withCaption, withTranscript, hydrated int
	owners := map[string]int{}
	var totalViews int64
	for _, r := range rows {
		if r.Caption != "" {
			withCaption++
		}
		if r.Transcript != "" {
			withTranscript++
		}
		if r.Status != reel.StatusPending {
			hydrated++
		}
		if r.OwnerHandle != "" {
			owners[r.OwnerHandle]++
		}
		totalViews += r.Views
	}
	return fmt.Sprintf(
		"rows=%d hydrated=%d with_caption=%d with_transcript=%d distinct_owners=%d total_views=%d",
		len(rows), hydrated, withCaption, withTranscript, len(owners), totalViews)
}

func sample(rows []reel.Row, n int) string {
	if len(rows) == 0 {
		return "table is empty"
	}
	picked := pickDiverse(rows, n)
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d rows:\n", len(picked), len(rows))
	for _, r := range picked {
		fmt.Fprintf(&b, "- %s owner=%s status=%s views=%d\n", r.URL, r.OwnerHandle, r.Status, r.Views)
	}
	return strings.TrimRight(b.String(), "\n")
}

// pickDiverse selects up to n rows, preferring one per distinct owner
// before repeating any. Deterministic for a given input order.
func pickDiverse(rows []reel.Row, n int) []reel.Row {
	if n <= 0 {
		return nil
	}
	seen := map[string]bool{}
	var first, rest []reel.Row
	for _, r := range rows {
		key := r.OwnerHandle
		if key == "" {
			key = r.URL
		}
		if !seen[key] {
			seen[key] = true
			first = append(first, r)
		} else {
			rest = append(rest, r)
		}
	}
	picked := first
	if len(picked) > n {
		picked = picked[:n]
	} else if len(picked) < n {
		need := n - len(picked)
		if need > len(rest) {
			need = len(rest)
		}
		picked = append(picked, rest[:need]...)
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].URL < picked[j].URL })
	return picked
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "\n[output truncated]"
}
