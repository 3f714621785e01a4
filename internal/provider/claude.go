// ABOUTME: Claude (Anthropic) Messages API adapter.
// ABOUTME: Maps messages near-verbatim and concatenates text content blocks.

package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prismgate/prism-gateway/internal/model"
)

const (
	defaultClaudeURL = "https://api.anthropic.com/v1/messages"

	// anthropicVersion pins the Messages API wire format.
	anthropicVersion = "2023-06-01"

	// claudeDefaultMaxTokens applies when the caller did not set a ceiling;
	// the Messages API requires one.
	claudeDefaultMaxTokens = 1024
)

// ClaudeConfig configures the Claude adapter.
type ClaudeConfig struct {
	APIKey      string
	MessagesURL string // defaults to the public Messages endpoint
	HTTPClient  *http.Client
}

// Claude is the adapter for Anthropic's Messages API.
type Claude struct {
	apiKey string
	url    string
	client *http.Client
}

// NewClaude constructs the Claude adapter.
func NewClaude(cfg ClaudeConfig) *Claude {
	url := cfg.MessagesURL
	if url == "" {
		url = defaultClaudeURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Claude{apiKey: cfg.APIKey, url: url, client: client}
}

func (p *Claude) Name() string {
	return "claude"
}

// Chat executes a synchronous Messages call.
func (p *Claude) Chat(ctx context.Context, req *model.ChatRequest, traceID string) (*model.ChatResponse, error) {
	if p.apiKey == "" {
		return nil, &NotConfiguredError{Provider: p.Name(), Key: "CLAUDE_KEY"}
	}

	headers := map[string]string{
		"Authorization":     "Bearer " + p.apiKey,
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}

	resp, err := postJSON(ctx, p.client, p.url, headers, p.buildPayload(req))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: fmt.Sprintf("claude request failed: %v", err)}
	}
	defer resp.Body.Close()

	requestID := requestIDFromHeaders(resp.Header)
	if resp.StatusCode >= 400 {
		return nil, &Error{
			Provider:          p.Name(),
			Message:           fmt.Sprintf("claude error %d: %s", resp.StatusCode, readErrorBody(resp.Body)),
			StatusCode:        resp.StatusCode,
			ProviderRequestID: requestID,
		}
	}

	data, err := decodeJSONBody(resp.Body)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: fmt.Sprintf("claude: %v", err), ProviderRequestID: requestID}
	}

	return &model.ChatResponse{
		Provider:          p.Name(),
		Model:             req.Model,
		OutputText:        extractClaudeText(data),
		Usage:             usageMap(data["usage"]),
		TraceID:           traceID,
		ConversationID:    req.ConversationID,
		AgentID:           req.AgentID,
		ProviderRequestID: requestID,
	}, nil
}

func (p *Claude) buildPayload(req *model.ChatRequest) map[string]any {
	maxTokens := claudeDefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	messages := make([]map[string]any, 0, len(req.Messages))
	for _, msg := range req.Messages {
		entry := map[string]any{
			"role":    string(msg.Role),
			"content": msg.Content,
		}
		if msg.Name != "" {
			entry["name"] = msg.Name
		}
		messages = append(messages, entry)
	}

	payload := map[string]any{
		"model":      req.Model,
		"max_tokens": maxTokens,
		"messages":   messages,
	}
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}
	return payload
}

// extractClaudeText concatenates every text-bearing content block in the
// upstream reply.
func extractClaudeText(data map[string]any) string {
	blocks, _ := data["content"].([]any)
	var out string
	for _, block := range blocks {
		if m, ok := block.(map[string]any); ok {
			if text, ok := m["text"].(string); ok {
				out += text
			}
		}
	}
	return out
}
