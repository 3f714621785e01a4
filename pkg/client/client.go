// ABOUTME: Go client for the gateway's streaming responses API.
// ABOUTME: Parses the SSE event stream and offers a collect-everything helper.

package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultBaseURL is where a locally run gateway listens.
const DefaultBaseURL = "http://127.0.0.1:8000"

// Request is the payload for POST /v1/responses. Streaming is the only
// delivery mode, so there is no stream toggle here.
type Request struct {
	Model           string         `json:"model"`
	Input           []Message      `json:"input"`
	Temperature     *float64       `json:"temperature,omitempty"`
	MaxOutputTokens *int           `json:"max_output_tokens,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Message is one input message. Content is either a plain string or a list
// of structured part objects.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Event is one parsed server-sent event.
type Event struct {
	// Name is the SSE event name, e.g. "response.output_text.delta".
	Name string
	// Data is the decoded JSON payload.
	Data map[string]any
}

// Result is the aggregate of a fully consumed stream.
type Result struct {
	ResponseID string
	OutputText string
	Usage      map[string]any
	TraceID    string
}

// Client talks to one gateway instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns a Client for the given base URL. An empty baseURL means the
// local default.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stream posts the request and invokes fn for every event as it arrives.
// Returning an error from fn aborts the stream and propagates the error.
func (c *Client) Stream(ctx context.Context, req *Request, fn func(Event) error) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/responses", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post /v1/responses: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	return parseSSE(resp.Body, fn)
}

// Complete consumes the whole stream and returns the assembled result.
func (c *Client) Complete(ctx context.Context, req *Request) (*Result, error) {
	result := &Result{}
	var deltas strings.Builder

	err := c.Stream(ctx, req, func(ev Event) error {
		switch ev.Name {
		case "response.created":
			if r, ok := ev.Data["response"].(map[string]any); ok {
				result.ResponseID, _ = r["id"].(string)
			}
		case "response.output_text.delta":
			for _, chunk := range stringSlice(ev.Data["output_text"]) {
				deltas.WriteString(chunk)
			}
		case "response.completed":
			if tid, ok := ev.Data["trace_id"].(string); ok {
				result.TraceID = tid
			}
			if r, ok := ev.Data["response"].(map[string]any); ok {
				if u, ok := r["usage"].(map[string]any); ok {
					result.Usage = u
				}
				if result.ResponseID == "" {
					result.ResponseID, _ = r["id"].(string)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.OutputText = deltas.String()
	return result, nil
}

// APIError is the gateway's structured error envelope.
type APIError struct {
	HTTPStatus     int    `json:"-"`
	Message        string `json:"message"`
	Code           string `json:"code"`
	Provider       string `json:"provider,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

func (e *APIError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("gateway error %s (%d, provider %s): %s", e.Code, e.HTTPStatus, e.Provider, e.Message)
	}
	return fmt.Sprintf("gateway error %s (%d): %s", e.Code, e.HTTPStatus, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		envelope.Error.HTTPStatus = resp.StatusCode
		return envelope.Error
	}
	return &APIError{
		HTTPStatus: resp.StatusCode,
		Code:       "unknown_error",
		Message:    strings.TrimSpace(string(raw)),
	}
}

// parseSSE reads "event:"/"data:" line pairs separated by blank lines and
// dispatches each completed event.
func parseSSE(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var eventName string
	var data strings.Builder

	dispatch := func() error {
		if eventName == "" && data.Len() == 0 {
			return nil
		}
		ev := Event{Name: eventName}
		if data.Len() > 0 {
			if err := json.Unmarshal([]byte(data.String()), &ev.Data); err != nil {
				return fmt.Errorf("decode event %q data: %w", eventName, err)
			}
		}
		eventName = ""
		data.Reset()
		return fn(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	// Streams that end without a trailing blank line still deliver the final
	// buffered event.
	return dispatch()
}

// stringSlice coerces a decoded JSON value into its string members.
func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// BuildUserMessage assembles a user message from a text prompt and optional
// local image files. Images travel inline as base64 data URLs.
func BuildUserMessage(prompt string, imagePaths ...string) (Message, error) {
	if len(imagePaths) == 0 {
		return Message{Role: "user", Content: prompt}, nil
	}

	parts := []map[string]any{
		{"type": "input_text", "text": prompt},
	}
	for _, path := range imagePaths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Message{}, fmt.Errorf("read image %s: %w", path, err)
		}
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(raw))
		parts = append(parts, map[string]any{
			"type":      "input_image",
			"image_url": dataURL,
		})
	}
	return Message{Role: "user", Content: parts}, nil
}
