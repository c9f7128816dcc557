package core

import (
	"context"
	"encoding/json"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/costs"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/master"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/reel"
	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/session"
)

// Message is one turn of the chat conversation, in the OpenAI wire shape.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is one model-requested tool invocation.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares one catalogue entry the model may call.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the JSON-schema signature of a tool.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatResponse is the model's reply plus the token usage it consumed.
type ChatResponse struct {
	Message      Message
	InputTokens  int64
	OutputTokens int64
}

// LLMProvider is the model backend the orchestration loop talks to.
type LLMProvider interface {
	// ChatWithTools sends the conversation and tool catalogue and returns
	// the next assistant message with usage counts.
	ChatWithTools(ctx context.Context, messages []Message, tools []Tool) (ChatResponse, error)
}

// ClassifiedReel is one item of the model's structured final answer.
type ClassifiedReel struct {
	URL         string   `json:"url"`
	Caption     string   `json:"caption"`
	Transcript  string   `json:"transcript"`
	OwnerHandle string   `json:"owner_handle"`
	OwnerName   string   `json:"owner_name"`
	TakenAtISO  string   `json:"taken_at_iso"`
	Views       int64    `json:"views"`
	Thumbnail   string   `json:"thumbnail"`
	USDecision  string   `json:"us_decision"`
	Relevance   string   `json:"relevance_decision"`
	Confidence  float64  `json:"confidence"`
	Reasons     []string `json:"reasons"`
}

// FinalOutput is the declared output schema the model must emit.
type FinalOutput struct {
	Keyword string           `json:"keyword"`
	Results []ClassifiedReel `json:"results"`
}

// RunResult is everything a finished run hands back to the caller.
type RunResult struct {
	SessionID  string           `json:"session_id"`
	Keyword    string           `json:"keyword"`
	Results    []reel.Row       `json:"results"`
	Metadata   session.Metadata `json:"metadata"`
	MergeStats master.Stats     `json:"merge_stats"`
	Cost       costs.Report     `json:"cost"`
	Iterations int              `json:"iterations"`
	CapHit     bool             `json:"cap_hit,omitempty"`
	Fallback   bool             `json:"filter_fallback,omitempty"`
}
