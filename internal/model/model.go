// ABOUTME: Shared request/response types exchanged between the HTTP layer,
// ABOUTME: the orchestrator, and the provider adapters.

package model

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleDeveloper Role = "developer"
)

// ValidRole reports whether s is one of the roles the gateway accepts.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool, RoleDeveloper:
		return true
	}
	return false
}

// Message is the provider-agnostic representation of one chat message.
type Message struct {
	Role     Role           `json:"role"`
	Content  Content        `json:"content"`
	Name     string         `json:"name,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Text returns the flattened textual projection of the message content, for
// providers that only accept text.
func (m Message) Text() string {
	return m.Content.Flatten()
}

// ChatRequest is the normalized request handed to a provider adapter.
// The request normalizer is its only producer; adapters must treat it as
// immutable.
type ChatRequest struct {
	Provider       string         `json:"provider"`
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	Temperature    *float64       `json:"temperature,omitempty"`
	MaxTokens      *int           `json:"max_tokens,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	AgentID        string         `json:"agent_id,omitempty"`
}

// LastMessage returns the final message of the request. Callers rely on the
// normalizer guaranteeing a non-empty message list.
func (r *ChatRequest) LastMessage() Message {
	return r.Messages[len(r.Messages)-1]
}

// ChatResponse is the normalized reply produced exactly once per adapter
// invocation.
type ChatResponse struct {
	Provider          string         `json:"provider"`
	Model             string         `json:"model"`
	OutputText        string         `json:"output_text"`
	Usage             map[string]any `json:"usage"`
	TraceID           string         `json:"trace_id"`
	ConversationID    string         `json:"conversation_id,omitempty"`
	AgentID           string         `json:"agent_id,omitempty"`
	ProviderRequestID string         `json:"provider_request_id,omitempty"`
}

// AgentEnvelope is the unit of inter-agent message exchange through the
// mailbox. The mailbox owns the envelope between publish and consume and
// never mutates the payload.
type AgentEnvelope struct {
	ConversationID   string         `json:"conversation_id"`
	SenderAgentID    string         `json:"sender_agent_id"`
	RecipientAgentID string         `json:"recipient_agent_id"`
	Payload          map[string]any `json:"payload"`
}
