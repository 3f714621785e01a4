// ABOUTME: Server-Sent Events formatting helpers.
// ABOUTME: Emits events in the exact form "event: <name>\ndata: <json>\n\n".

package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// sseHeaders marks the response as an event stream and disables proxy
// buffering so chunks reach the client as they are flushed.
func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// formatSSEEvent renders one event with the standard wire form.
func formatSSEEvent(event, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}

// writeSSEEvent marshals data compactly and writes a single event.
func (g *Gateway) writeSSEEvent(w io.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "event", event, "error", err)
		return err
	}
	if _, err := io.WriteString(w, formatSSEEvent(event, string(payload))); err != nil {
		return err
	}
	return nil
}
