// ABOUTME: Liveness and readiness endpoints.
// ABOUTME: Readiness reports per-dependency detail and probes the OpenAI upstream.

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// readyProbeTimeout bounds the upstream reachability probe so readiness
// checks stay fast.
const readyProbeTimeout = 2 * time.Second

// handleHealthz handles GET /healthz. It reports liveness plus the sorted
// provider list for diagnostics.
func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"environment": g.config.Gateway.Environment,
		"providers":   g.providers.Names(),
	})
}

// handleReadyz handles GET /readyz. The gateway is ready when an OpenAI key
// is configured and the upstream answers the probe.
func (g *Gateway) handleReadyz(w http.ResponseWriter, r *http.Request) {
	details := map[string]any{
		"openai_key": g.config.Providers.OpenAIKey != "",
	}
	ready := g.config.Providers.OpenAIKey != ""

	if ready {
		reachable := g.probeUpstream(r.Context())
		details["openai_reachable"] = reachable
		ready = reachable
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "not_ready", "details": details})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ready", "details": details})
}

// probeUpstream reports whether the upstream answers with a non-5xx status
// within the probe timeout.
func (g *Gateway) probeUpstream(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, readyProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}
