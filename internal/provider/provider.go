// ABOUTME: Provider abstraction for upstream language-model adapters.
// ABOUTME: Defines the chat contract, the optional streaming capability, and failure values.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/prismgate/prism-gateway/internal/model"
)

// Provider executes one normalized chat request against one upstream.
type Provider interface {
	// Name is the registry key for this adapter, always lower case.
	Name() string

	// Chat executes the request and returns a normalized response. It fails
	// with *NotConfiguredError when credentials are absent and with *Error on
	// upstream or transport failures. Adapters never retry.
	Chat(ctx context.Context, req *model.ChatRequest, traceID string) (*model.ChatResponse, error)
}

// StreamingProvider is the optional capability for native incremental
// delivery. Callers detect support via type assertion; adapters without it
// get a synthesized stream from one synchronous Chat call.
type StreamingProvider interface {
	Provider

	// Stream issues the upstream call with streaming enabled and returns the
	// raw upstream byte stream. The returned body enforces opts.MaxBytesOut
	// and releases the upstream connection exactly once on Close, regardless
	// of how the stream terminates.
	Stream(ctx context.Context, req *model.ChatRequest, traceID string, opts StreamOptions) (*UpstreamStream, error)
}

// StreamOptions carries the caller-supplied limits for a native stream.
type StreamOptions struct {
	// BufferBytes is the suggested read chunk size.
	BufferBytes int
	// MaxBytesOut aborts the stream with a 502 *Error once exceeded.
	// Zero means unlimited.
	MaxBytesOut int64
}

// UpstreamStream is a native upstream byte stream plus its correlation id.
type UpstreamStream struct {
	ProviderRequestID string
	Body              io.ReadCloser
}

// Error is a provider-specific failure. It never carries partial success
// data.
type Error struct {
	Provider          string
	Message           string
	StatusCode        int // upstream HTTP status, 0 when the failure is not status-shaped
	ProviderRequestID string
}

func (e *Error) Error() string {
	return e.Message
}

// NotConfiguredError indicates the selected provider lacks the credentials
// to execute requests.
type NotConfiguredError struct {
	Provider string
	Key      string // the credential setting that is missing, e.g. "OPENAI_KEY"
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("%s is not configured", e.Key)
}

// requestIDHeaders are the upstream correlation headers, in priority order.
var requestIDHeaders = []string{
	"x-request-id",
	"anthropic-request-id",
	"x-cloud-trace-context",
}

// requestIDFromHeaders scans the known correlation headers in priority order.
// Absence is not an error; the empty string means the upstream sent none.
func requestIDFromHeaders(h http.Header) string {
	for _, name := range requestIDHeaders {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// postJSON issues a single JSON POST with the given headers.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return client.Do(req)
}

// maxErrorBodyBytes bounds how much of an upstream error body is read into
// the error message.
const maxErrorBodyBytes = 2000

// readErrorBody drains up to maxErrorBodyBytes of an upstream error response.
func readErrorBody(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes+1))
	if err != nil {
		return ""
	}
	if len(data) > maxErrorBodyBytes {
		return string(data[:maxErrorBodyBytes]) + "...[truncated]"
	}
	return string(data)
}

// budgetBody wraps an upstream stream body, enforcing a cumulative byte
// budget and guaranteeing the underlying connection is released exactly once.
type budgetBody struct {
	body         io.ReadCloser
	providerName string
	requestID    string
	max          int64

	read      int64
	exhausted bool
	closeOnce sync.Once
	closeErr  error
}

func (b *budgetBody) Read(p []byte) (int, error) {
	if b.exhausted {
		return 0, io.EOF
	}
	n, err := b.body.Read(p)
	b.read += int64(n)
	if b.max > 0 && b.read > b.max {
		// The overflowing chunk is dropped, not forwarded.
		b.exhausted = true
		return 0, &Error{
			Provider:          b.providerName,
			Message:           fmt.Sprintf("%s stream exceeded configured byte budget", b.providerName),
			StatusCode:        http.StatusBadGateway,
			ProviderRequestID: b.requestID,
		}
	}
	return n, err
}

func (b *budgetBody) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.body.Close()
	})
	return b.closeErr
}

// decodeJSONBody decodes a success response body into a generic map.
func decodeJSONBody(body io.Reader) (map[string]any, error) {
	var data map[string]any
	if err := json.NewDecoder(body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return data, nil
}

// usageMap extracts a usage counter mapping from a decoded payload field.
func usageMap(v any) map[string]any {
	if usage, ok := v.(map[string]any); ok {
		return usage
	}
	return map[string]any{}
}
