// ABOUTME: Deterministic echo adapter with no network dependency.
// ABOUTME: Used for local verification and as a default fallback provider.

package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/prismgate/prism-gateway/internal/model"
)

// Echo deterministically echoes the flattened text of the last message.
type Echo struct{}

// NewEcho returns the echo adapter.
func NewEcho() *Echo {
	return &Echo{}
}

func (e *Echo) Name() string {
	return "echo"
}

// Chat echoes the latest message back with a trivial usage estimate derived
// from word and character counts.
func (e *Echo) Chat(_ context.Context, req *model.ChatRequest, traceID string) (*model.ChatResponse, error) {
	latest := req.LastMessage().Text()
	output := fmt.Sprintf("[echo::%s] %s", req.Model, latest)

	return &model.ChatResponse{
		Provider:   e.Name(),
		Model:      req.Model,
		OutputText: output,
		Usage: map[string]any{
			"prompt_tokens":     len(strings.Fields(latest)),
			"completion_tokens": len(output),
		},
		TraceID:        traceID,
		ConversationID: req.ConversationID,
		AgentID:        req.AgentID,
	}, nil
}
