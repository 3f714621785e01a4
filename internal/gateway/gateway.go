// ABOUTME: Gateway orchestrator that composes providers, mailbox, and the HTTP server.
// ABOUTME: Resolves providers per request and manages server lifecycle.

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prismgate/prism-gateway/internal/config"
	"github.com/prismgate/prism-gateway/internal/mailbox"
	"github.com/prismgate/prism-gateway/internal/model"
	"github.com/prismgate/prism-gateway/internal/provider"
)

// readyProbeURL is the upstream endpoint the readiness check pings.
const readyProbeURL = "https://api.openai.com/"

// Gateway owns the provider registry, the agent mailbox, and the HTTP server.
// One instance lives for the whole process.
type Gateway struct {
	config     *config.Config
	providers  *provider.Registry
	mailbox    *mailbox.Mailbox
	httpClient *http.Client
	httpServer *http.Server
	logger     *slog.Logger

	// probeURL is readyProbeURL except in tests.
	probeURL string
}

// New creates a Gateway from explicit configuration. The shared HTTP client
// carries the request timeout and is safe for concurrent use by all adapters.
func New(cfg *config.Config, logger *slog.Logger) *Gateway {
	httpClient := &http.Client{Timeout: cfg.Gateway.RequestTimeout}

	g := &Gateway{
		config:     cfg,
		providers:  buildRegistry(cfg, httpClient),
		mailbox:    mailbox.New(cfg.Gateway.MailboxDepth),
		httpClient: httpClient,
		logger:     logger.With("component", "gateway"),
		probeURL:   readyProbeURL,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", g.handleHealthz)
	mux.HandleFunc("GET /readyz", g.handleReadyz)
	mux.HandleFunc("POST /v1/responses", g.handleResponses)
	mux.HandleFunc("POST /v1/agents/messages", g.handlePublishAgentMessage)
	mux.HandleFunc("GET /v1/agents/{agent_id}/messages", g.handleDrainAgentMessages)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.requestIDMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g
}

// buildRegistry registers every adapter the configuration can support.
// Adapters check their own credentials at call time, so unconfigured
// providers still appear in the registry and fail with a mapped error.
func buildRegistry(cfg *config.Config, httpClient *http.Client) *provider.Registry {
	registry := provider.NewRegistry()
	registry.Register(provider.NewEcho())
	registry.Register(provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:           cfg.Providers.OpenAIKey,
		HTTPClient:       httpClient,
		DefaultMaxTokens: cfg.Gateway.DefaultMaxTokens,
	}))
	registry.Register(provider.NewGemini(provider.GeminiConfig{
		APIKey:     cfg.Providers.GeminiKey,
		HTTPClient: httpClient,
	}))
	registry.Register(provider.NewClaude(provider.ClaudeConfig{
		APIKey:     cfg.Providers.ClaudeKey,
		HTTPClient: httpClient,
	}))
	return registry
}

// Chat resolves the request's provider and executes it. An unknown provider
// surfaces as a generic provider failure naming the provider.
func (g *Gateway) Chat(ctx context.Context, req *model.ChatRequest, traceID string) (*model.ChatResponse, error) {
	p, ok := g.providers.Get(req.Provider)
	if !ok {
		return nil, &provider.Error{
			Provider: req.Provider,
			Message:  fmt.Sprintf("provider %q is not registered", req.Provider),
		}
	}
	return p.Chat(ctx, req, traceID)
}

// PublishAgentMessage enqueues an envelope for later consumption.
func (g *Gateway) PublishAgentMessage(env model.AgentEnvelope) {
	g.mailbox.Publish(env)
}

// DrainAgentMessages drains all queued envelopes for the key.
func (g *Gateway) DrainAgentMessages(agentID, conversationID string) []model.AgentEnvelope {
	return g.mailbox.Consume(agentID, conversationID)
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	serverErr := g.waitForShutdownSignal(ctx, errCh)
	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// waitForShutdownSignal waits for context cancellation or a server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and releases the shared transport.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	err := g.httpServer.Shutdown(ctx)
	g.httpClient.CloseIdleConnections()
	if err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

// Handler exposes the configured HTTP handler, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}
