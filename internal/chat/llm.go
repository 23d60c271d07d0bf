// Package chat turns user prompts into motion-control actions: it sends the
// prompt to an OpenAI-compatible completion API together with the bridge's
// tool inventory, executes whatever tool calls come back, and asks the model
// for a final answer grounded in the results.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mkessler-io/motionbridge/internal/tools"
)

// Message is one turn in the completion exchange.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is the model's request to run one tool.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// UpstreamError reports a non-2xx answer from the completion API with enough
// detail for the HTTP layer to map it onto a client-visible status.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion api returned %d: %s", e.Status, e.Body)
}

// LLMClient talks to one OpenAI-compatible chat completions endpoint.
type LLMClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewLLMClient validates the endpoint configuration. The API key may be
// empty for local models.
func NewLLMClient(baseURL, apiKey, model string, timeout time.Duration) (*LLMClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("completion api base url is required")
	}
	if model == "" {
		return nil, fmt.Errorf("completion model name is required")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LLMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Model returns the configured model name.
func (c *LLMClient) Model() string { return c.model }

// Complete sends one chat completion request. When descs is non-empty the
// tool definitions ride along and the model may answer with tool calls
// instead of text.
func (c *LLMClient) Complete(ctx context.Context, msgs []Message, descs []tools.Descriptor) (*Message, error) {
	payload := map[string]interface{}{
		"model":    c.model,
		"messages": msgs,
	}
	if len(descs) > 0 {
		defs := make([]map[string]interface{}, 0, len(descs))
		for _, d := range descs {
			defs = append(defs, map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        d.Name,
					"description": d.Description,
					"parameters":  d.InputSchema(),
				},
			})
		}
		payload["tools"] = defs
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("completion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: excerpt(body)}
	}

	var parsed struct {
		Choices []struct {
			Message Message `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("completion response carried no choices")
	}
	return &parsed.Choices[0].Message, nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}
