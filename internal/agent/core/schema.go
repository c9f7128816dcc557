package core

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// finalOutputSchema is the strict contract for the model's final answer.
const finalOutputSchema = `{
  "type": "object",
  "required": ["keyword", "results"],
  "properties": {
    "keyword": {"type": "string"},
    "results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["url", "us_decision", "relevance_decision"],
        "properties": {
          "url": {"type": "string", "minLength": 1},
          "caption": {"type": "string"},
          "transcript": {"type": "string"},
          "owner_handle": {"type": "string"},
          "owner_name": {"type": "string"},
          "taken_at_iso": {"type": "string"},
          "views": {"type": "number"},
          "thumbnail": {"type": "string"},
          "us_decision": {"enum": ["US", "NotUS", "Unknown"]},
          "relevance_decision": {"enum": ["match", "partial", "no"]},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "reasons": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

var finalSchema = gojsonschema.NewStringLoader(finalOutputSchema)

// ParseFinal extracts and validates the model's structured final answer.
func ParseFinal(content string) (FinalOutput, error) {
	raw := extractFirstJSON(content)

	result, err := gojsonschema.Validate(finalSchema, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return FinalOutput{}, fmt.Errorf("validating final output: %w", err)
	}
	if !result.Valid() {
		return FinalOutput{}, fmt.Errorf("final output violates schema: %s", result.Errors()[0].String())
	}

	var out FinalOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return FinalOutput{}, fmt.Errorf("unmarshal final output: %w", err)
	}
	return out, nil
}

// extractFirstJSON attempts to find the first top-level JSON object in a string
func extractFirstJSON(s string) string {
	start := -1
	depth := 0
	for i, ch := range s {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return s
}
