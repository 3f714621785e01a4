// ABOUTME: Tests for request normalization and the pre-flight guards.
// ABOUTME: Covers model identifier parsing, validation, and size/token budgets.

package gateway

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismgate/prism-gateway/internal/model"
)

func TestParseModelIdentifier(t *testing.T) {
	tests := []struct {
		name            string
		identifier      string
		defaultProvider string
		wantProvider    string
		wantModel       string
		wantCode        string
	}{
		{
			name:         "explicit provider",
			identifier:   "openai:gpt-5-nano",
			wantProvider: "openai",
			wantModel:    "gpt-5-nano",
		},
		{
			name:         "provider is lower cased",
			identifier:   "OpenAI:gpt-5-nano",
			wantProvider: "openai",
			wantModel:    "gpt-5-nano",
		},
		{
			name:         "model keeps extra separators",
			identifier:   "gemini:models/gemini-2.5-pro:latest",
			wantProvider: "gemini",
			wantModel:    "models/gemini-2.5-pro:latest",
		},
		{
			name:            "bare model uses default provider",
			identifier:      "gpt-5-nano",
			defaultProvider: "echo",
			wantProvider:    "echo",
			wantModel:       "gpt-5-nano",
		},
		{
			name:       "bare model without default fails",
			identifier: "gpt-5-nano",
			wantCode:   codeProviderRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providerName, upstreamModel, apiErr := parseModelIdentifier(tt.identifier, tt.defaultProvider)
			if tt.wantCode != "" {
				require.NotNil(t, apiErr)
				assert.Equal(t, tt.wantCode, apiErr.Code)
				assert.Equal(t, http.StatusUnprocessableEntity, apiErr.HTTPStatus)
				return
			}
			require.Nil(t, apiErr)
			assert.Equal(t, tt.wantProvider, providerName)
			assert.Equal(t, tt.wantModel, upstreamModel)
		})
	}
}

func TestResponseRequest_Validate(t *testing.T) {
	valid := func() *responseRequest {
		return &responseRequest{
			Model: "echo:default",
			Input: []responseInputMessage{
				{Role: "user", Content: json.RawMessage(`"hi"`)},
			},
		}
	}

	t.Run("valid request passes", func(t *testing.T) {
		assert.Nil(t, valid().validate())
	})

	t.Run("missing model", func(t *testing.T) {
		r := valid()
		r.Model = ""
		requireInvalid(t, r.validate(), "model")
	})

	t.Run("empty input", func(t *testing.T) {
		r := valid()
		r.Input = nil
		requireInvalid(t, r.validate(), "input")
	})

	t.Run("bad role", func(t *testing.T) {
		r := valid()
		r.Input[0].Role = "robot"
		requireInvalid(t, r.validate(), "role")
	})

	t.Run("stream false rejected", func(t *testing.T) {
		r := valid()
		stream := false
		r.Stream = &stream
		requireInvalid(t, r.validate(), "stream")
	})

	t.Run("stream true accepted", func(t *testing.T) {
		r := valid()
		stream := true
		r.Stream = &stream
		assert.Nil(t, r.validate())
	})

	t.Run("temperature out of range", func(t *testing.T) {
		r := valid()
		temp := 2.5
		r.Temperature = &temp
		requireInvalid(t, r.validate(), "temperature")
	})

	t.Run("non positive max tokens", func(t *testing.T) {
		r := valid()
		zero := 0
		r.MaxOutputTokens = &zero
		requireInvalid(t, r.validate(), "max_output_tokens")
	})
}

func requireInvalid(t *testing.T, apiErr *apiError, fragment string) {
	t.Helper()
	require.NotNil(t, apiErr)
	assert.Equal(t, codeInvalidRequest, apiErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.HTTPStatus)
	assert.Contains(t, apiErr.Message, fragment)
}

func TestNormalizeRequest_MetadataMerge(t *testing.T) {
	payload := &responseRequest{
		Model: "openai:gpt-5-nano",
		Input: []responseInputMessage{
			{Role: "user", Content: json.RawMessage(`"hi"`)},
		},
		Reasoning:      map[string]any{"effort": "low"},
		ResponseFormat: map[string]any{"type": "json_object"},
		Metadata:       map[string]any{"tenant": "acme"},
	}

	req, apiErr := normalizeRequest(payload, "openai", "gpt-5-nano")
	require.Nil(t, apiErr)

	assert.Equal(t, "openai", req.Provider)
	assert.Equal(t, "gpt-5-nano", req.Model)
	assert.Equal(t, "acme", req.Metadata["tenant"])
	assert.Equal(t, map[string]any{"effort": "low"}, req.Metadata["reasoning"])
	assert.Equal(t, map[string]any{"type": "json_object"}, req.Metadata["response_format"])
}

func TestNormalizeRequest_ContentCoercion(t *testing.T) {
	payload := &responseRequest{
		Model: "echo:default",
		Input: []responseInputMessage{
			{Role: "user", Content: json.RawMessage(`["a", "b"]`)},
			{Role: "user", Content: json.RawMessage(`[{"type":"input_text","text":"typed"}]`)},
		},
	}

	req, apiErr := normalizeRequest(payload, "echo", "default")
	require.Nil(t, apiErr)
	require.Len(t, req.Messages, 2)

	assert.False(t, req.Messages[0].Content.Structured())
	assert.Equal(t, "a\nb", req.Messages[0].Content.Flatten())
	assert.True(t, req.Messages[1].Content.Structured())
}

func TestGuardBodySize(t *testing.T) {
	assert.Nil(t, guardBodySize(100, 100))
	assert.Nil(t, guardBodySize(100, 0))

	apiErr := guardBodySize(101, 100)
	require.NotNil(t, apiErr)
	assert.Equal(t, codeBodyTooLarge, apiErr.Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, apiErr.HTTPStatus)
}

func TestGuardTokenBudget(t *testing.T) {
	req := &model.ChatRequest{Messages: []model.Message{
		{Role: model.RoleUser, Content: model.TextContent("aaaaaaaa")}, // 8 chars, 2 tokens
	}}

	assert.Nil(t, guardTokenBudget(req, 2))
	assert.Nil(t, guardTokenBudget(req, 0))

	apiErr := guardTokenBudget(req, 1)
	require.NotNil(t, apiErr)
	assert.Equal(t, codeInputTooLarge, apiErr.Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, apiErr.HTTPStatus)
}

func TestEstimateTokens_SumsAllMessages(t *testing.T) {
	req := []model.Message{
		{Content: model.TextContent("1234")},
		{Content: model.TextContent("12345678")},
	}
	assert.Equal(t, 3, estimateTokens(req))
}

func TestEstimateTokens_CountsRunesNotBytes(t *testing.T) {
	// Eight runes (24 UTF-8 bytes): two estimated tokens, not six.
	messages := []model.Message{
		{Content: model.TextContent("こんにちは世界で")},
	}
	assert.Equal(t, 2, estimateTokens(messages))

	apiErr := guardTokenBudget(&model.ChatRequest{Messages: messages}, 2)
	assert.Nil(t, apiErr)
}
