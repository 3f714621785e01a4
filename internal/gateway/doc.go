// Package gateway orchestrates the prism-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the prism-gateway server.
// It owns the provider registry, the agent mailbox, the shared upstream HTTP
// client, and the HTTP server.
//
// # HTTP API
//
// The gateway exposes HTTP endpoints in api.go:
//
//   - POST /v1/responses - Uniform chat endpoint (SSE streaming response)
//   - POST /v1/agents/messages - Publish an agent envelope
//   - GET /v1/agents/{agent_id}/messages - Drain queued envelopes
//   - GET /healthz - Liveness check
//   - GET /readyz - Readiness check with per-dependency detail
//
// # SSE Streaming
//
// Every successful response is streamed as Server-Sent Events. Providers
// without native streaming get a synthesized three-event sequence:
//
//	event: response.created
//	data: {"type": "response.created", "response": {...}}
//
//	event: response.output_text.delta
//	data: {"type": "response.output_text.delta", "output_text": ["..."]}
//
//	event: response.completed
//	data: {"type": "response.completed", "response": {...}}
//
// Providers that implement provider.StreamingProvider have their upstream
// byte stream relayed verbatim instead, under a configurable byte budget.
//
// # Error Taxonomy
//
// Every failure maps to exactly one stable code (errors.go): invalid_request,
// provider_required, provider_not_configured, upstream_auth_error,
// upstream_rate_limited, upstream_unavailable, provider_error,
// body_too_large, input_too_large, internal_error. The wire shape is always
//
//	{"error": {"message": "...", "code": "...", "provider": "..."}}
//
// # Lifecycle
//
// Start the gateway:
//
//	gw := gateway.New(cfg, logger)
//	err := gw.Run(ctx)
//
// Run blocks until the context is canceled, then shuts down gracefully.
//
// # Key Files
//
//   - gateway.go: Gateway struct, registry wiring, Run/Shutdown
//   - api.go: HTTP handlers and the request pipeline
//   - normalize.go: envelope validation, model parsing, guards
//   - stream.go: synthesized and passthrough stream strategies
//   - errors.go: the error taxonomy and mapping
package gateway
