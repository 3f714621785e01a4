// ABOUTME: Stream translation strategies for /v1/responses.
// ABOUTME: Synthesizes a three-event sequence or relays a native upstream stream.

package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prismgate/prism-gateway/internal/model"
	"github.com/prismgate/prism-gateway/internal/provider"
)

const (
	eventResponseCreated   = "response.created"
	eventOutputTextDelta   = "response.output_text.delta"
	eventResponseCompleted = "response.completed"
)

// newResponseID mints the client-visible response identifier.
func newResponseID() string {
	return "resp_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// streamSynthesized fabricates the three-phase event sequence from one
// completed synchronous call. Ordering is a hard invariant: created precedes
// delta precedes completed. This adapter class has no true incremental
// delivery, so the full text travels in a single delta.
func (g *Gateway) streamSynthesized(w http.ResponseWriter, flusher http.Flusher, resp *model.ChatResponse, traceID string, start time.Time, bytesIn int) {
	firstDeltaAt := time.Now()
	responseID := newResponseID()
	createdAt := time.Now().Unix()
	usage := resp.Usage
	if usage == nil {
		usage = map[string]any{}
	}

	created := map[string]any{
		"type": eventResponseCreated,
		"response": map[string]any{
			"id":      responseID,
			"object":  "response",
			"model":   resp.Model,
			"created": createdAt,
			"usage":   usage,
		},
	}
	if err := g.writeSSEEvent(w, eventResponseCreated, created); err != nil {
		return
	}
	flusher.Flush()

	delta := map[string]any{
		"type":        eventOutputTextDelta,
		"response_id": responseID,
		"output_text": []string{resp.OutputText},
		"trace_id":    traceID,
	}
	if err := g.writeSSEEvent(w, eventOutputTextDelta, delta); err != nil {
		return
	}
	flusher.Flush()

	completed := map[string]any{
		"type": eventResponseCompleted,
		"response": map[string]any{
			"id":          responseID,
			"object":      "response",
			"model":       resp.Model,
			"output_text": []string{resp.OutputText},
			"usage":       usage,
		},
		"trace_id": traceID,
	}
	if err := g.writeSSEEvent(w, eventResponseCompleted, completed); err != nil {
		return
	}
	flusher.Flush()

	g.logger.Info("response.stream_complete",
		"trace_id", traceID,
		"provider", resp.Provider,
		"model", resp.Model,
		"ttft_ms", float64(firstDeltaAt.Sub(start).Microseconds())/1000,
		"duration_ms", float64(time.Since(start).Microseconds())/1000,
		"usage", usage,
		"bytes_in", bytesIn,
	)
}

// streamPassthrough relays upstream byte chunks verbatim as they arrive. The
// upstream body enforces the byte budget itself; this loop only forwards,
// flushes, and measures. The deferred Close releases the upstream connection
// on every termination path, including client disconnects.
func (g *Gateway) streamPassthrough(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, upstream *provider.UpstreamStream, providerName, modelName, traceID string, start time.Time, bytesIn int) {
	defer upstream.Body.Close()

	var firstChunkAt time.Time
	var bytesOut int64
	buf := make([]byte, g.config.Gateway.StreamBufferBytes)

	for {
		if ctx.Err() != nil {
			g.logger.Warn("response.stream_cancelled",
				"trace_id", traceID,
				"provider", providerName,
				"model", modelName,
				"bytes_out", bytesOut,
			)
			return
		}

		n, err := upstream.Body.Read(buf)
		if n > 0 {
			if firstChunkAt.IsZero() {
				firstChunkAt = time.Now()
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				g.logger.Warn("response.stream_write_failed", "trace_id", traceID, "error", werr)
				return
			}
			flusher.Flush()
			bytesOut += int64(n)
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			// Bytes already flushed cannot be un-sent; the missing
			// response.completed event tells the client the stream failed.
			var provErr *provider.Error
			if errors.As(err, &provErr) {
				g.logger.Warn("response.stream_truncated",
					"trace_id", traceID,
					"provider", providerName,
					"model", modelName,
					"error", provErr.Message,
					"bytes_out", bytesOut,
				)
			} else {
				g.logger.Error("response.stream_failed",
					"trace_id", traceID,
					"provider", providerName,
					"model", modelName,
					"error", err,
					"bytes_out", bytesOut,
				)
			}
			return
		}
	}

	ttft := time.Since(start)
	if !firstChunkAt.IsZero() {
		ttft = firstChunkAt.Sub(start)
	}
	g.logger.Info("response.stream_complete",
		"trace_id", traceID,
		"provider", providerName,
		"model", modelName,
		"ttft_ms", float64(ttft.Microseconds())/1000,
		"duration_ms", float64(time.Since(start).Microseconds())/1000,
		"bytes_in", bytesIn,
		"bytes_out", bytesOut,
		"provider_request_id", upstream.ProviderRequestID,
	)
}
