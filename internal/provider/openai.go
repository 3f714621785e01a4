// ABOUTME: OpenAI Responses API adapter with native streaming support.
// ABOUTME: Maps normalized messages to typed input parts and relays raw SSE bytes.

package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prismgate/prism-gateway/internal/model"
)

const defaultOpenAIURL = "https://api.openai.com/v1/responses"

// OpenAIConfig configures the OpenAI adapter. All values arrive by
// construction; the adapter never reads ambient state.
type OpenAIConfig struct {
	APIKey           string
	ResponsesURL     string // defaults to the public Responses endpoint
	HTTPClient       *http.Client
	DefaultMaxTokens int
}

// OpenAI is the adapter for the OpenAI Responses API. It is the one adapter
// variant that also implements StreamingProvider.
type OpenAI struct {
	apiKey           string
	url              string
	client           *http.Client
	defaultMaxTokens int
}

// NewOpenAI constructs the OpenAI adapter.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	url := cfg.ResponsesURL
	if url == "" {
		url = defaultOpenAIURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenAI{
		apiKey:           cfg.APIKey,
		url:              url,
		client:           client,
		defaultMaxTokens: cfg.DefaultMaxTokens,
	}
}

func (p *OpenAI) Name() string {
	return "openai"
}

// Chat executes a synchronous Responses call.
func (p *OpenAI) Chat(ctx context.Context, req *model.ChatRequest, traceID string) (*model.ChatResponse, error) {
	if p.apiKey == "" {
		return nil, &NotConfiguredError{Provider: p.Name(), Key: "OPENAI_KEY"}
	}

	resp, err := postJSON(ctx, p.client, p.url, p.headers(), p.buildPayload(req, false))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: fmt.Sprintf("openai request failed: %v", err)}
	}
	defer resp.Body.Close()

	requestID := requestIDFromHeaders(resp.Header)
	if resp.StatusCode >= 400 {
		return nil, &Error{
			Provider:          p.Name(),
			Message:           fmt.Sprintf("openai error %d: %s", resp.StatusCode, readErrorBody(resp.Body)),
			StatusCode:        resp.StatusCode,
			ProviderRequestID: requestID,
		}
	}

	data, err := decodeJSONBody(resp.Body)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: fmt.Sprintf("openai: %v", err), ProviderRequestID: requestID}
	}

	return &model.ChatResponse{
		Provider:          p.Name(),
		Model:             req.Model,
		OutputText:        extractOutputText(data),
		Usage:             usageMap(data["usage"]),
		TraceID:           traceID,
		ConversationID:    req.ConversationID,
		AgentID:           req.AgentID,
		ProviderRequestID: requestID,
	}, nil
}

// Stream executes the same Responses call with streaming enabled and returns
// the raw upstream byte stream under the caller's byte budget. The returned
// body closes the upstream connection exactly once on every exit path.
func (p *OpenAI) Stream(ctx context.Context, req *model.ChatRequest, _ string, opts StreamOptions) (*UpstreamStream, error) {
	if p.apiKey == "" {
		return nil, &NotConfiguredError{Provider: p.Name(), Key: "OPENAI_KEY"}
	}

	resp, err := postJSON(ctx, p.client, p.url, p.headers(), p.buildPayload(req, true))
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: fmt.Sprintf("openai request failed: %v", err)}
	}

	requestID := requestIDFromHeaders(resp.Header)
	if resp.StatusCode >= 400 {
		body := readErrorBody(resp.Body)
		_ = resp.Body.Close()
		return nil, &Error{
			Provider:          p.Name(),
			Message:           fmt.Sprintf("openai error %d: %s", resp.StatusCode, body),
			StatusCode:        resp.StatusCode,
			ProviderRequestID: requestID,
		}
	}

	return &UpstreamStream{
		ProviderRequestID: requestID,
		Body: &budgetBody{
			body:         resp.Body,
			providerName: p.Name(),
			requestID:    requestID,
			max:          opts.MaxBytesOut,
		},
	}, nil
}

func (p *OpenAI) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	}
}

func (p *OpenAI) buildPayload(req *model.ChatRequest, stream bool) map[string]any {
	input := make([]map[string]any, 0, len(req.Messages))
	for _, msg := range req.Messages {
		input = append(input, messageToResponsesFormat(msg))
	}

	maxTokens := p.defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	payload := map[string]any{
		"model":             req.Model,
		"input":             input,
		"max_output_tokens": maxTokens,
		"stream":            stream,
	}
	if reasoning, ok := req.Metadata["reasoning"]; ok && reasoning != nil {
		payload["reasoning"] = reasoning
	}
	if format, ok := req.Metadata["response_format"]; ok && format != nil {
		payload["response_format"] = format
	}
	return payload
}

// messageToResponsesFormat maps one message to the Responses input shape.
// Parts carrying an explicit type tag pass through verbatim; untyped parts
// are tagged output_text for assistant-authored content and input_text
// otherwise.
func messageToResponsesFormat(msg model.Message) map[string]any {
	defaultType := defaultChunkType(msg.Role)

	if !msg.Content.Structured() {
		return map[string]any{
			"role": string(msg.Role),
			"content": []map[string]any{
				{"type": defaultType, "text": msg.Content.Text},
			},
		}
	}

	parts := make([]map[string]any, 0, len(msg.Content.Parts))
	for _, part := range msg.Content.Parts {
		if part.Type != "" {
			parts = append(parts, part.Wire())
			continue
		}
		parts = append(parts, map[string]any{"type": defaultType, "text": part.Flatten()})
	}
	return map[string]any{"role": string(msg.Role), "content": parts}
}

func defaultChunkType(role model.Role) string {
	if role == model.RoleAssistant {
		return "output_text"
	}
	return "input_text"
}

// extractOutputText pulls the reply text from a Responses payload: either the
// flat output_text field or a scan over the heterogeneous typed output items.
func extractOutputText(data map[string]any) string {
	switch v := data["output_text"].(type) {
	case string:
		return v
	case []any:
		var out string
		for _, chunk := range v {
			out += fmt.Sprint(chunk)
		}
		return out
	}

	items, _ := data["output"].([]any)
	var out string
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch m["type"] {
		case "output_text":
			if text, ok := m["text"].(string); ok {
				out += text
			}
		case "message":
			payload := m
			if inner, ok := m["message"].(map[string]any); ok {
				payload = inner
			}
			blocks, _ := payload["content"].([]any)
			for _, block := range blocks {
				bm, ok := block.(map[string]any)
				if !ok {
					continue
				}
				if bm["type"] == "output_text" || bm["type"] == "text" {
					if text, ok := bm["text"].(string); ok {
						out += text
					}
				}
			}
		}
	}
	return out
}
