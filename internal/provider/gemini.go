// ABOUTME: Gemini generateContent adapter.
// ABOUTME: Maps roles to user/model and content parts to text or inlineData parts.

package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/prismgate/prism-gateway/internal/model"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultGeminiModel   = "gemini-2.5-pro-preview-03-25"
)

// GeminiConfig configures the Gemini adapter.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string // defaults to the public generativelanguage endpoint
	HTTPClient *http.Client
}

// Gemini is the adapter for Google's generateContent API.
type Gemini struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewGemini constructs the Gemini adapter.
func NewGemini(cfg GeminiConfig) *Gemini {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Gemini{apiKey: cfg.APIKey, baseURL: baseURL, client: client}
}

func (p *Gemini) Name() string {
	return "gemini"
}

// Chat executes a synchronous generateContent call.
func (p *Gemini) Chat(ctx context.Context, req *model.ChatRequest, traceID string) (*model.ChatResponse, error) {
	if p.apiKey == "" {
		return nil, &NotConfiguredError{Provider: p.Name(), Key: "GEMINI_KEY"}
	}

	modelName := normalizeGeminiModel(req.Model)
	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", p.baseURL, modelName, url.QueryEscape(p.apiKey))

	contents := make([]map[string]any, 0, len(req.Messages))
	for _, msg := range req.Messages {
		contents = append(contents, messageToGemini(msg))
	}

	resp, err := postJSON(ctx, p.client, endpoint, nil, map[string]any{"contents": contents})
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: fmt.Sprintf("gemini request failed: %v", err)}
	}
	defer resp.Body.Close()

	requestID := requestIDFromHeaders(resp.Header)
	if resp.StatusCode >= 400 {
		return nil, &Error{
			Provider:          p.Name(),
			Message:           fmt.Sprintf("gemini error %d: %s", resp.StatusCode, readErrorBody(resp.Body)),
			StatusCode:        resp.StatusCode,
			ProviderRequestID: requestID,
		}
	}

	data, err := decodeJSONBody(resp.Body)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Message: fmt.Sprintf("gemini: %v", err), ProviderRequestID: requestID}
	}

	return &model.ChatResponse{
		Provider:          p.Name(),
		Model:             modelName,
		OutputText:        extractGeminiText(data),
		Usage:             usageMap(data["usageMetadata"]),
		TraceID:           traceID,
		ConversationID:    req.ConversationID,
		AgentID:           req.AgentID,
		ProviderRequestID: requestID,
	}, nil
}

// normalizeGeminiModel strips the optional "models/" prefix and falls back to
// a known default when the caller sent none.
func normalizeGeminiModel(name string) string {
	if name == "" {
		return defaultGeminiModel
	}
	return strings.TrimPrefix(name, "models/")
}

// messageToGemini maps a message to the generateContent shape. Gemini knows
// only two roles: user stays user, everything else becomes model.
func messageToGemini(msg model.Message) map[string]any {
	role := "model"
	if msg.Role == model.RoleUser {
		role = "user"
	}

	if !msg.Content.Structured() {
		return map[string]any{
			"role":  role,
			"parts": []map[string]any{{"text": msg.Content.Text}},
		}
	}

	parts := make([]map[string]any, 0, len(msg.Content.Parts))
	for _, part := range msg.Content.Parts {
		parts = append(parts, partToGemini(part))
	}
	return map[string]any{"role": role, "parts": parts}
}

// partToGemini translates one content part. Text parts map to text parts,
// base64 data-URL images map to inlineData, and anything else falls back to
// its flattened text rather than being dropped.
func partToGemini(part model.Part) map[string]any {
	switch part.Kind {
	case model.KindText:
		return map[string]any{"text": part.Text}
	case model.KindImage:
		if mimeType, data, ok := parseDataURL(part.ImageURL); ok {
			return map[string]any{
				"inlineData": map[string]any{"mimeType": mimeType, "data": data},
			}
		}
	}
	return map[string]any{"text": part.Flatten()}
}

// parseDataURL splits a "data:<mime>;base64,<data>" URL into its mime type
// and payload.
func parseDataURL(s string) (mimeType, data string, ok bool) {
	rest, found := strings.CutPrefix(s, "data:")
	if !found {
		return "", "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return "", "", false
	}
	return strings.TrimSuffix(meta, ";base64"), payload, true
}

// extractGeminiText joins the text parts of the first candidate.
func extractGeminiText(data map[string]any) string {
	candidates, _ := data["candidates"].([]any)
	if len(candidates) == 0 {
		return ""
	}
	first, ok := candidates[0].(map[string]any)
	if !ok {
		return ""
	}
	content, _ := first["content"].(map[string]any)
	parts, _ := content["parts"].([]any)

	var out string
	for _, part := range parts {
		if m, ok := part.(map[string]any); ok {
			if text, ok := m["text"].(string); ok {
				out += text
			}
		}
	}
	return out
}
