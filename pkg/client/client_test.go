// ABOUTME: Tests for the gateway client library.
// ABOUTME: Covers SSE parsing, result assembly, error decoding, and message building.

package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const streamFixture = "event: response.created\n" +
	`data: {"type":"response.created","response":{"id":"resp_1","object":"response","model":"default"}}` + "\n\n" +
	"event: response.output_text.delta\n" +
	`data: {"type":"response.output_text.delta","response_id":"resp_1","output_text":["hello "],"trace_id":"t1"}` + "\n\n" +
	"event: response.output_text.delta\n" +
	`data: {"type":"response.output_text.delta","response_id":"resp_1","output_text":["world"],"trace_id":"t1"}` + "\n\n" +
	"event: response.completed\n" +
	`data: {"type":"response.completed","response":{"id":"resp_1","usage":{"prompt_tokens":1}},"trace_id":"t1"}` + "\n\n"

func streamServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/responses", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(body))
	}))
}

func TestClient_StreamDeliversEventsInOrder(t *testing.T) {
	srv := streamServer(t, streamFixture)
	defer srv.Close()

	c := New(srv.URL)
	var names []string
	err := c.Stream(context.Background(), &Request{Model: "echo:default", Input: []Message{{Role: "user", Content: "hi"}}}, func(ev Event) error {
		names = append(names, ev.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"response.created",
		"response.output_text.delta",
		"response.output_text.delta",
		"response.completed",
	}, names)
}

func TestClient_CompleteAssemblesResult(t *testing.T) {
	srv := streamServer(t, streamFixture)
	defer srv.Close()

	c := New(srv.URL)
	result, err := c.Complete(context.Background(), &Request{Model: "echo:default", Input: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)

	assert.Equal(t, "resp_1", result.ResponseID)
	assert.Equal(t, "hello world", result.OutputText)
	assert.Equal(t, "t1", result.TraceID)
	assert.Equal(t, 1.0, result.Usage["prompt_tokens"])
}

func TestClient_StreamWithoutTrailingBlankLine(t *testing.T) {
	srv := streamServer(t, strings.TrimSuffix(streamFixture, "\n\n"))
	defer srv.Close()

	c := New(srv.URL)
	var last string
	err := c.Stream(context.Background(), &Request{Model: "echo:default", Input: []Message{{Role: "user", Content: "hi"}}}, func(ev Event) error {
		last = ev.Name
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "response.completed", last)
}

func TestClient_StreamCallbackErrorAborts(t *testing.T) {
	srv := streamServer(t, streamFixture)
	defer srv.Close()

	c := New(srv.URL)
	var seen int
	err := c.Stream(context.Background(), &Request{Model: "echo:default", Input: []Message{{Role: "user", Content: "hi"}}}, func(ev Event) error {
		seen++
		if ev.Name == "response.output_text.delta" {
			return assert.AnError
		}
		return nil
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 2, seen)
}

func TestClient_DecodesGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusFailedDependency)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message":  "CLAUDE_KEY is not configured",
				"code":     "provider_not_configured",
				"provider": "claude",
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Stream(context.Background(), &Request{Model: "claude:x", Input: []Message{{Role: "user", Content: "hi"}}}, func(Event) error { return nil })

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusFailedDependency, apiErr.HTTPStatus)
	assert.Equal(t, "provider_not_configured", apiErr.Code)
	assert.Equal(t, "claude", apiErr.Provider)
	assert.Contains(t, apiErr.Error(), "CLAUDE_KEY")
}

func TestClient_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream blew up"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Stream(context.Background(), &Request{Model: "echo:x", Input: []Message{{Role: "user", Content: "hi"}}}, func(Event) error { return nil })

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.HTTPStatus)
	assert.Equal(t, "unknown_error", apiErr.Code)
	assert.Contains(t, apiErr.Message, "upstream blew up")
}

func TestBuildUserMessage_TextOnly(t *testing.T) {
	msg, err := BuildUserMessage("just text")
	require.NoError(t, err)
	assert.Equal(t, "user", msg.Role)
	assert.Equal(t, "just text", msg.Content)
}

func TestBuildUserMessage_WithImage(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "pic.png")
	raw := []byte{0x89, 'P', 'N', 'G'}
	require.NoError(t, os.WriteFile(imgPath, raw, 0644))

	msg, err := BuildUserMessage("what is this", imgPath)
	require.NoError(t, err)

	parts, ok := msg.Content.([]map[string]any)
	require.True(t, ok)
	require.Len(t, parts, 2)

	assert.Equal(t, "input_text", parts[0]["type"])
	assert.Equal(t, "what is this", parts[0]["text"])

	assert.Equal(t, "input_image", parts[1]["type"])
	url := parts[1]["image_url"].(string)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
	payload := strings.TrimPrefix(url, "data:image/png;base64,")
	decoded, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestBuildUserMessage_MissingImage(t *testing.T) {
	_, err := BuildUserMessage("hi", filepath.Join(t.TempDir(), "absent.png"))
	assert.Error(t, err)
}
