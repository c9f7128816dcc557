package core

import (
	"strings"
	"testing"
)

const validFinal = `{
  "keyword": "fitness_trainer",
  "results": [
    {
      "url": "https://example.com/reel/1/",
      "owner_handle": "coach_amy",
      "us_decision": "US",
      "relevance_decision": "match",
      "confidence": 0.9,
      "reasons": ["bio mentions Texas"]
    }
  ]
}`

func TestParseFinalValid(t *testing.T) {
	out, err := ParseFinal(validFinal)
	if err != nil {
		t.Fatalf("ParseFinal: %v", err)
	}
	if out.Keyword != "fitness_trainer" || len(out.Results) != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if out.Results[0].USDecision != "US" || out.Results[0].Confidence != 0.9 {
		t.Fatalf("unexpected result: %+v", out.Results[0])
	}
}

func TestParseFinalSurroundedByProse(t *testing.T) {
	content := "Here is my final classification:\n" + validFinal + "\nLet me know if you need anything else."
	out, err := ParseFinal(content)
	if err != nil {
		t.Fatalf("ParseFinal should extract the embedded object: %v", err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out.Results))
	}
}

func TestParseFinalRejectsBadDecision(t *testing.T) {
	content := strings.Replace(validFinal, `"US"`, `"Europe"`, 1)
	if _, err := ParseFinal(content); err == nil {
		t.Fatal("an invalid us_decision should fail schema validation")
	}
}

func TestParseFinalRejectsMissingKeyword(t *testing.T) {
	if _, err := ParseFinal(`{"results": []}`); err == nil {
		t.Fatal("missing keyword should fail schema validation")
	}
}

func TestParseFinalRejectsProseOnly(t *testing.T) {
	if _, err := ParseFinal("I was unable to classify anything, sorry."); err == nil {
		t.Fatal("prose with no JSON should fail")
	}
}

func TestParseFinalEmptyResults(t *testing.T) {
	out, err := ParseFinal(`{"keyword": "kw", "results": []}`)
	if err != nil {
		t.Fatalf("empty result arrays are valid: %v", err)
	}
	if len(out.Results) != 0 {
		t.Fatalf("expected no results, got %d", len(out.Results))
	}
}

func TestExtractFirstJSONNested(t *testing.T) {
	s := `prefix {"a": {"b": 1}} suffix {"c": 2}`
	if got := extractFirstJSON(s); got != `{"a": {"b": 1}}` {
		t.Fatalf("extractFirstJSON = %q", got)
	}
}
