package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentrt/core/pkg/schema"
	"github.com/agentrt/core/pkg/skillrunner"
)

const anthropicMessagesURL = "https://api.anthropic.com/v1/messages"

// anthropicClient is the front-end-supplied skillrunner.ModelClient
// (spec §1 treats the model provider as out of the core's scope; the
// core only defines the ModelClient interface it drives). A direct,
// minimal messages-API client rather than a full SDK, since the
// example pack's LLM-transport package (pkg/model) was dropped
// wholesale as out of SPEC_FULL.md's scope.
type anthropicClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func newAnthropicClient(apiKey, model string) *anthropicClient {
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	return &anthropicClient{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicToolDef `json:"tools,omitempty"`
	System    string             `json:"system,omitempty"`
}

type anthropicContentBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
}

// Chat implements skillrunner.ModelClient. System messages are hoisted
// into the request's top-level "system" field per the Anthropic
// messages API's shape; everything else maps through directly.
func (c *anthropicClient) Chat(ctx context.Context, messages []skillrunner.Message, tools []skillrunner.ToolSpec) (skillrunner.ChatResult, error) {
	req := anthropicRequest{Model: c.model, MaxTokens: 4096}
	for _, m := range messages {
		if m.Role == "system" {
			req.System = m.Content
			continue
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, anthropicToolDef{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema.ToJSONSchema(t.InputSchema),
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return skillrunner.ChatResult{}, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicMessagesURL, bytes.NewReader(body))
	if err != nil {
		return skillrunner.ChatResult{}, fmt.Errorf("anthropic: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return skillrunner.ChatResult{}, fmt.Errorf("anthropic: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return skillrunner.ChatResult{}, fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return skillrunner.ChatResult{}, fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, data)
	}

	var out anthropicResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return skillrunner.ChatResult{}, fmt.Errorf("anthropic: unmarshal response: %w", err)
	}

	result := skillrunner.ChatResult{FinishReason: out.StopReason}
	for _, block := range out.Content {
		switch block.Type {
		case "text":
			result.Content += block.Text
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, skillrunner.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	return result, nil
}
