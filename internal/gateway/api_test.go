// ABOUTME: HTTP-level tests for the responses API, agent mailbox, and health endpoints.
// ABOUTME: Exercises the full handler chain through the configured mux.

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismgate/prism-gateway/internal/config"
	"github.com/prismgate/prism-gateway/internal/model"
	"github.com/prismgate/prism-gateway/internal/provider"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Gateway.DefaultProvider = "echo"
	cfg.Providers.OpenAIKey = ""
	cfg.Providers.GeminiKey = ""
	cfg.Providers.ClaudeKey = ""
	return cfg
}

func newTestGateway(cfg *config.Config) *Gateway {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, logger)
}

func postResponses(g *Gateway, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/responses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	return rec
}

// sseEvent is one parsed wire event.
type sseEvent struct {
	name string
	data map[string]any
}

func parseSSEBody(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.data))
			}
		}
		events = append(events, ev)
	}
	return events
}

func decodedError(t *testing.T, rec *httptest.ResponseRecorder) *apiError {
	t.Helper()
	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	return envelope.Error
}

func TestResponses_EchoSynthesizedStream(t *testing.T) {
	g := newTestGateway(testConfig())

	rec := postResponses(g, `{"model":"echo:default","input":[{"role":"user","content":"hello"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("x-request-id"))

	events := parseSSEBody(t, rec.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, "response.created", events[0].name)
	assert.Equal(t, "response.output_text.delta", events[1].name)
	assert.Equal(t, "response.completed", events[2].name)

	created := events[0].data["response"].(map[string]any)
	responseID := created["id"].(string)
	assert.True(t, strings.HasPrefix(responseID, "resp_"))
	assert.Equal(t, "response", created["object"])

	delta := events[1].data
	assert.Equal(t, responseID, delta["response_id"])
	assert.Equal(t, []any{"[echo::default] hello"}, delta["output_text"])
	assert.NotEmpty(t, delta["trace_id"])

	completed := events[2].data["response"].(map[string]any)
	assert.Equal(t, responseID, completed["id"])
	assert.Equal(t, []any{"[echo::default] hello"}, completed["output_text"])
	usage := completed["usage"].(map[string]any)
	assert.Equal(t, 1.0, usage["prompt_tokens"])
}

func TestResponses_DefaultProviderApplies(t *testing.T) {
	g := newTestGateway(testConfig())

	rec := postResponses(g, `{"model":"some-model","input":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseSSEBody(t, rec.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, []any{"[echo::some-model] hi"}, events[1].data["output_text"])
}

func TestResponses_ProviderRequiredWithoutDefault(t *testing.T) {
	cfg := testConfig()
	cfg.Gateway.DefaultProvider = ""
	g := newTestGateway(cfg)

	rec := postResponses(g, `{"model":"gpt-5-nano","input":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, codeProviderRequired, decodedError(t, rec).Code)
}

func TestResponses_StreamFalseRejected(t *testing.T) {
	g := newTestGateway(testConfig())

	rec := postResponses(g, `{"model":"echo:default","stream":false,"input":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	apiErr := decodedError(t, rec)
	assert.Equal(t, codeInvalidRequest, apiErr.Code)
	assert.Contains(t, apiErr.Message, "stream")
}

func TestResponses_UnknownProvider(t *testing.T) {
	g := newTestGateway(testConfig())

	rec := postResponses(g, `{"model":"bogus:anything","input":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	apiErr := decodedError(t, rec)
	assert.Equal(t, codeProviderError, apiErr.Code)
	assert.Equal(t, "bogus", apiErr.Provider)
	assert.Contains(t, apiErr.Message, "bogus")
}

func TestResponses_NotConfiguredProvider(t *testing.T) {
	g := newTestGateway(testConfig())

	rec := postResponses(g, `{"model":"claude:claude-sonnet-4","input":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusFailedDependency, rec.Code)
	apiErr := decodedError(t, rec)
	assert.Equal(t, codeProviderNotConfigured, apiErr.Code)
	assert.Equal(t, "claude", apiErr.Provider)
}

func TestResponses_InvalidJSON(t *testing.T) {
	g := newTestGateway(testConfig())

	rec := postResponses(g, `{not json`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, codeInvalidRequest, decodedError(t, rec).Code)
}

// recordingProvider counts invocations so guard tests can prove the adapter
// was never reached.
type recordingProvider struct {
	calls int
}

func (p *recordingProvider) Name() string { return "stub" }

func (p *recordingProvider) Chat(_ context.Context, req *model.ChatRequest, traceID string) (*model.ChatResponse, error) {
	p.calls++
	return &model.ChatResponse{Provider: "stub", Model: req.Model, OutputText: "ok", TraceID: traceID}, nil
}

func TestResponses_BodyTooLargeShortCircuits(t *testing.T) {
	cfg := testConfig()
	cfg.Gateway.MaxRequestBytes = 64
	g := newTestGateway(cfg)

	stub := &recordingProvider{}
	g.providers.Register(stub)

	padding := strings.Repeat("x", 200)
	rec := postResponses(g, `{"model":"stub:m","input":[{"role":"user","content":"`+padding+`"}]}`)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, codeBodyTooLarge, decodedError(t, rec).Code)
	assert.Zero(t, stub.calls)
}

func TestResponses_InputTooLargeShortCircuits(t *testing.T) {
	cfg := testConfig()
	cfg.Gateway.MaxInputTokens = 2
	g := newTestGateway(cfg)

	stub := &recordingProvider{}
	g.providers.Register(stub)

	rec := postResponses(g, `{"model":"stub:m","input":[{"role":"user","content":"way more than two tokens of text"}]}`)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, codeInputTooLarge, decodedError(t, rec).Code)
	assert.Zero(t, stub.calls)
}

// stubStreamer serves a canned native stream.
type stubStreamer struct {
	recordingProvider
	payload   string
	requestID string
	streamErr error
	opts      provider.StreamOptions
}

func (s *stubStreamer) Stream(_ context.Context, _ *model.ChatRequest, _ string, opts provider.StreamOptions) (*provider.UpstreamStream, error) {
	s.opts = opts
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	return &provider.UpstreamStream{
		ProviderRequestID: s.requestID,
		Body:              io.NopCloser(bytes.NewReader([]byte(s.payload))),
	}, nil
}

func TestResponses_NativeStreamPassthrough(t *testing.T) {
	g := newTestGateway(testConfig())

	payload := "event: response.created\ndata: {}\n\nevent: response.completed\ndata: {}\n\n"
	stub := &stubStreamer{payload: payload, requestID: "req_native"}
	g.providers.Register(stub)

	rec := postResponses(g, `{"model":"stub:m","input":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Upstream bytes are relayed verbatim, not re-synthesized.
	assert.Equal(t, payload, rec.Body.String())
	assert.Equal(t, "req_native", rec.Header().Get("x-provider-request-id"))
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	// The configured limits reach the adapter.
	assert.Equal(t, g.config.Gateway.StreamBufferBytes, stub.opts.BufferBytes)
	assert.Equal(t, g.config.Gateway.StreamByteBudget, stub.opts.MaxBytesOut)
}

func TestResponses_NativeStreamOpenFailureIsJSONError(t *testing.T) {
	g := newTestGateway(testConfig())

	stub := &stubStreamer{streamErr: &provider.Error{
		Provider:   "stub",
		Message:    "upstream 429",
		StatusCode: http.StatusTooManyRequests,
	}}
	g.providers.Register(stub)

	rec := postResponses(g, `{"model":"stub:m","input":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, codeUpstreamRateLimited, decodedError(t, rec).Code)
}

func TestGatewayChat_ResolvesProvider(t *testing.T) {
	g := newTestGateway(testConfig())

	resp, err := g.Chat(context.Background(), &model.ChatRequest{
		Provider: "echo",
		Model:    "default",
		Messages: []model.Message{{Role: model.RoleUser, Content: model.TextContent("hi")}},
	}, "trace-chat")
	require.NoError(t, err)
	assert.Equal(t, "[echo::default] hi", resp.OutputText)
	assert.Equal(t, "trace-chat", resp.TraceID)
}

func TestGatewayChat_UnknownProvider(t *testing.T) {
	g := newTestGateway(testConfig())

	_, err := g.Chat(context.Background(), &model.ChatRequest{
		Provider: "bogus",
		Model:    "anything",
		Messages: []model.Message{{Role: model.RoleUser, Content: model.TextContent("hi")}},
	}, "t")

	var provErr *provider.Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "bogus", provErr.Provider)
	assert.Zero(t, provErr.StatusCode)
	assert.Contains(t, provErr.Message, "bogus")
}

func TestRequestIDMiddleware(t *testing.T) {
	g := newTestGateway(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("x-request-id", "caller-supplied")
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "caller-supplied", rec.Header().Get("x-request-id"))

	rec = httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rec.Header().Get("x-request-id"))
}

func TestAgents_PublishAndDrain(t *testing.T) {
	g := newTestGateway(testConfig())

	publish := `{"conversation_id":"conv-1","sender_agent_id":"alpha","recipient_agent_id":"beta","payload":{"note":"hi"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/agents/messages", strings.NewReader(publish))
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var status map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "queued", status["status"])

	rec = httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/agents/beta/messages?conversation_id=conv-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var drained drainResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &drained))
	require.Len(t, drained.Messages, 1)
	assert.Equal(t, "alpha", drained.Messages[0].SenderAgentID)
	assert.Equal(t, "hi", drained.Messages[0].Payload["note"])

	// A second drain is empty but still a JSON list, never null.
	rec = httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/agents/beta/messages?conversation_id=conv-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

func TestAgents_PublishValidation(t *testing.T) {
	g := newTestGateway(testConfig())

	req := httptest.NewRequest(http.MethodPost, "/v1/agents/messages", strings.NewReader(`{"conversation_id":"conv-1"}`))
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, codeInvalidRequest, decodedError(t, rec).Code)
}

func TestAgents_DrainRequiresConversationID(t *testing.T) {
	g := newTestGateway(testConfig())

	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/agents/beta/messages", nil))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodedError(t, rec).Message, "conversation_id")
}

func TestHealthz(t *testing.T) {
	g := newTestGateway(testConfig())

	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "development", body["environment"])
	assert.Equal(t, []any{"claude", "echo", "gemini", "openai"}, body["providers"])
}

func TestReadyz_NoKeyIsNotReady(t *testing.T) {
	g := newTestGateway(testConfig())

	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body["status"])
	details := body["details"].(map[string]any)
	assert.Equal(t, false, details["openai_key"])
}

func TestReadyz_ProbeDecides(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	cfg := testConfig()
	cfg.Providers.OpenAIKey = "sk-test"
	g := newTestGateway(cfg)
	g.probeURL = upstream.URL

	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
	details := body["details"].(map[string]any)
	assert.Equal(t, true, details["openai_key"])
	assert.Equal(t, true, details["openai_reachable"])
}

func TestReadyz_UpstreamDownIsNotReady(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	cfg := testConfig()
	cfg.Providers.OpenAIKey = "sk-test"
	g := newTestGateway(cfg)
	g.probeURL = upstream.URL

	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
