// ABOUTME: HTTP handlers for the uniform streaming chat API and agent mailbox.
// ABOUTME: POST /v1/responses always streams; agent endpoints relay envelopes.

package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prismgate/prism-gateway/internal/model"
	"github.com/prismgate/prism-gateway/internal/provider"
)

// newTraceID mints a per-request correlation id.
func newTraceID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// requestIDMiddleware stamps every response with an x-request-id, honoring
// an inbound header when the caller supplied one.
func (g *Gateway) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("x-request-id")
		if requestID == "" {
			requestID = newTraceID()
		}
		w.Header().Set("x-request-id", requestID)
		next.ServeHTTP(w, r)
	})
}

// handleResponses handles POST /v1/responses.
//
// Responsibilities, in order:
//  1. Enforce the body-size guard before decoding anything.
//  2. Decode and validate the envelope (always-streaming contract).
//  3. Parse the model identifier and normalize into a ChatRequest.
//  4. Enforce the token-budget guard before any upstream call.
//  5. Resolve the provider and pick the stream strategy: passthrough for a
//     native-streaming adapter, synthesized otherwise.
func (g *Gateway) handleResponses(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ceiling := g.config.Gateway.MaxRequestBytes
	raw, err := io.ReadAll(io.LimitReader(r.Body, int64(ceiling)+1))
	if err != nil {
		g.writeError(w, validationError("failed to read request body"))
		return
	}
	if apiErr := guardBodySize(len(raw), ceiling); apiErr != nil {
		g.writeError(w, apiErr)
		return
	}

	var payload responseRequest
	if err := json.Unmarshal(raw, &payload); err != nil {
		g.writeError(w, validationError("invalid JSON body"))
		return
	}
	if apiErr := payload.validate(); apiErr != nil {
		g.writeError(w, apiErr)
		return
	}

	providerName, upstreamModel, apiErr := parseModelIdentifier(payload.Model, g.config.Gateway.DefaultProvider)
	if apiErr != nil {
		g.writeError(w, apiErr)
		return
	}

	chatReq, apiErr := normalizeRequest(&payload, providerName, upstreamModel)
	if apiErr != nil {
		g.writeError(w, apiErr)
		return
	}
	if apiErr := guardTokenBudget(chatReq, g.config.Gateway.MaxInputTokens); apiErr != nil {
		g.writeError(w, apiErr)
		return
	}

	traceID := newTraceID()
	logger := g.logger.With("trace_id", traceID, "provider", providerName, "model", upstreamModel)

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("streaming not supported by response writer")
		g.writeError(w, &apiError{HTTPStatus: http.StatusInternalServerError, Message: "streaming not supported", Code: codeInternalError})
		return
	}

	if p, found := g.providers.Get(providerName); found {
		if streamer, ok := p.(provider.StreamingProvider); ok {
			g.serveNativeStream(w, r, flusher, streamer, chatReq, traceID, logger, start, len(raw))
			return
		}
	}

	// Unknown providers surface from Chat as a provider failure and map below.
	resp, err := g.Chat(r.Context(), chatReq, traceID)
	if err != nil {
		mapped := mapError(err, providerName)
		logger.Warn("response.failed", "error", err.Error())
		g.writeError(w, mapped)
		return
	}

	sseHeaders(w)
	g.streamSynthesized(w, flusher, resp, traceID, start, len(raw))
}

// serveNativeStream opens the upstream stream and relays it. Failures before
// the first byte still produce the uniform JSON error shape.
func (g *Gateway) serveNativeStream(w http.ResponseWriter, r *http.Request, flusher http.Flusher, streamer provider.StreamingProvider, chatReq *model.ChatRequest, traceID string, logger *slog.Logger, start time.Time, bytesIn int) {
	upstream, err := streamer.Stream(r.Context(), chatReq, traceID, provider.StreamOptions{
		BufferBytes: g.config.Gateway.StreamBufferBytes,
		MaxBytesOut: g.config.Gateway.StreamByteBudget,
	})
	if err != nil {
		mapped := mapError(err, chatReq.Provider)
		logger.Warn("response.failed", "error", err.Error())
		g.writeError(w, mapped)
		return
	}

	sseHeaders(w)
	if upstream.ProviderRequestID != "" {
		w.Header().Set("x-provider-request-id", upstream.ProviderRequestID)
	}
	g.streamPassthrough(r.Context(), w, flusher, upstream, chatReq.Provider, chatReq.Model, traceID, start, bytesIn)
}

// handlePublishAgentMessage handles POST /v1/agents/messages.
func (g *Gateway) handlePublishAgentMessage(w http.ResponseWriter, r *http.Request) {
	var env model.AgentEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		g.writeError(w, validationError("invalid JSON body"))
		return
	}
	if env.ConversationID == "" || env.SenderAgentID == "" || env.RecipientAgentID == "" {
		g.writeError(w, validationError("conversation_id, sender_agent_id, and recipient_agent_id are required"))
		return
	}

	g.PublishAgentMessage(env)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

// drainResponse is the JSON response for GET /v1/agents/{agent_id}/messages.
type drainResponse struct {
	Messages []model.AgentEnvelope `json:"messages"`
}

// handleDrainAgentMessages handles GET /v1/agents/{agent_id}/messages.
func (g *Gateway) handleDrainAgentMessages(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")
	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		g.writeError(w, validationError("conversation_id query parameter is required"))
		return
	}

	messages := g.DrainAgentMessages(agentID, conversationID)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(drainResponse{Messages: messages})
}
