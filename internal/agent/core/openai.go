package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/Sanchay-T/influencer-platform-app-sub009/internal/agent/config"
)

// OpenAIProvider implements LLMProvider against the chat completions API.
type OpenAIProvider struct {
	config config.LLMConfig
	client *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(cfg config.LLMConfig) *OpenAIProvider {
	return &OpenAIProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// ChatWithTools sends the conversation plus tool catalogue and returns the
// assistant's next message with token usage.
func (p *OpenAIProvider) ChatWithTools(ctx context.Context, messages []Message, tools []Tool) (ChatResponse, error) {
	apiKey := p.config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return ChatResponse{}, fmt.Errorf("OpenAI API key not configured")
	}

	m, ok := p.config.Models[p.config.Model]
	if !ok {
		return ChatResponse{}, fmt.Errorf("model %s not configured", p.config.Model)
	}
	apiModel := m.APIName
	if apiModel == "" {
		apiModel = p.config.Model
	}

	type chatReq struct {
		Model     string    `json:"model"`
		Messages  []Message `json:"messages"`
		Tools     []Tool    `json:"tools,omitempty"`
		MaxTokens int       `json:"max_tokens,omitempty"`
	}

	body, err := json.Marshal(chatReq{
		Model:     apiModel,
		Messages:  messages,
		Tools:     tools,
		MaxTokens: m.MaxOutputTokens,
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("marshal: %w", err)
	}

	baseURL := p.config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ChatResponse{}, fmt.Errorf("OpenAI status %d", resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message Message `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ChatResponse{}, fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("no choices")
	}

	return ChatResponse{
		Message:      out.Choices[0].Message,
		InputTokens:  int64(out.Usage.PromptTokens),
		OutputTokens: int64(out.Usage.CompletionTokens),
	}, nil
}
