// ABOUTME: Request normalization from the external /v1/responses envelope.
// ABOUTME: Model identifier parsing, content coercion, and size/token guards.

package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/prismgate/prism-gateway/internal/model"
)

// responseRequest is the wire envelope for POST /v1/responses.
type responseRequest struct {
	Model           string                 `json:"model"`
	Input           []responseInputMessage `json:"input"`
	Temperature     *float64               `json:"temperature,omitempty"`
	MaxOutputTokens *int                   `json:"max_output_tokens,omitempty"`
	Stream          *bool                  `json:"stream,omitempty"`
	ResponseFormat  map[string]any         `json:"response_format,omitempty"`
	Reasoning       map[string]any         `json:"reasoning,omitempty"`
	Metadata        map[string]any         `json:"metadata,omitempty"`
}

// responseInputMessage defers content decoding so the coercion rule in the
// model package sees the raw JSON.
type responseInputMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// validate enforces the envelope's structural contract.
func (r *responseRequest) validate() *apiError {
	if r.Model == "" {
		return validationError("model is required")
	}
	if len(r.Input) == 0 {
		return validationError("input cannot be empty")
	}
	for _, msg := range r.Input {
		if !model.ValidRole(msg.Role) {
			return validationError(fmt.Sprintf("invalid role %q", msg.Role))
		}
	}
	if r.Stream != nil && !*r.Stream {
		return validationError("only streaming responses are supported (stream=true)")
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return validationError("temperature must be between 0 and 2")
	}
	if r.MaxOutputTokens != nil && *r.MaxOutputTokens <= 0 {
		return validationError("max_output_tokens must be positive")
	}
	return nil
}

// parseModelIdentifier splits "<provider>:<model>" into its parts. Without a
// separator the configured default provider applies verbatim; with no default
// configured either, the request fails with provider_required.
func parseModelIdentifier(identifier, defaultProvider string) (providerName, upstreamModel string, apiErr *apiError) {
	if before, after, found := strings.Cut(identifier, ":"); found {
		return strings.ToLower(before), after, nil
	}
	if defaultProvider == "" {
		return "", "", &apiError{
			HTTPStatus: 422,
			Message:    "model does not name a provider and no default provider is configured",
			Code:       codeProviderRequired,
		}
	}
	return defaultProvider, identifier, nil
}

// normalizeRequest builds the immutable ChatRequest handed to adapters.
// The reasoning and response_format hints ride along in metadata.
func normalizeRequest(payload *responseRequest, providerName, upstreamModel string) (*model.ChatRequest, *apiError) {
	messages := make([]model.Message, 0, len(payload.Input))
	for _, msg := range payload.Input {
		content, err := model.ParseContent(msg.Content)
		if err != nil {
			return nil, validationError(fmt.Sprintf("invalid message content: %v", err))
		}
		messages = append(messages, model.Message{
			Role:    model.Role(msg.Role),
			Content: content,
		})
	}

	metadata := make(map[string]any, len(payload.Metadata)+2)
	for k, v := range payload.Metadata {
		metadata[k] = v
	}
	if payload.Reasoning != nil {
		metadata["reasoning"] = payload.Reasoning
	}
	if payload.ResponseFormat != nil {
		metadata["response_format"] = payload.ResponseFormat
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	return &model.ChatRequest{
		Provider:    providerName,
		Model:       upstreamModel,
		Messages:    messages,
		Temperature: payload.Temperature,
		MaxTokens:   payload.MaxOutputTokens,
		Metadata:    metadata,
	}, nil
}

// guardBodySize rejects requests whose serialized size exceeds the byte
// ceiling, before any adapter work happens.
func guardBodySize(size, ceiling int) *apiError {
	if ceiling > 0 && size > ceiling {
		return &apiError{
			HTTPStatus: 413,
			Message:    "request body too large",
			Code:       codeBodyTooLarge,
		}
	}
	return nil
}

// guardTokenBudget rejects requests whose estimated token count exceeds the
// ceiling. The estimate divides flattened character count by four; it is a
// documented heuristic, not a tokenizer.
func guardTokenBudget(req *model.ChatRequest, ceiling int) *apiError {
	if ceiling > 0 && estimateTokens(req.Messages) > ceiling {
		return &apiError{
			HTTPStatus: 413,
			Message:    "input too large for configured token budget",
			Code:       codeInputTooLarge,
		}
	}
	return nil
}

// estimateTokens approximates tokens as one per four characters of flattened
// text, rounded down. Characters are runes, so multi-byte input is not
// penalized for its encoding.
func estimateTokens(messages []model.Message) int {
	totalChars := 0
	for _, msg := range messages {
		totalChars += utf8.RuneCountInString(msg.Text())
	}
	return totalChars / 4
}
