// ABOUTME: In-memory bounded mailbox for asynchronous agent-to-agent handoff.
// ABOUTME: Keeps one FIFO queue per (recipient, conversation) key.

package mailbox

import (
	"sync"

	"github.com/prismgate/prism-gateway/internal/model"
)

// key identifies one queue.
type key struct {
	agentID        string
	conversationID string
}

// queue is one per-key FIFO with its own lock so operations on different
// keys never contend.
type queue struct {
	mu    sync.Mutex
	items []model.AgentEnvelope
}

// Mailbox relays opaque envelopes between agents that cannot call each other
// directly. Queues are created lazily on first publish and retained for the
// process lifetime; only their depth is bounded.
type Mailbox struct {
	mu       sync.RWMutex
	queues   map[key]*queue
	maxDepth int
}

// New returns a mailbox whose queues hold at most maxDepth envelopes each.
func New(maxDepth int) *Mailbox {
	return &Mailbox{
		queues:   make(map[key]*queue),
		maxDepth: maxDepth,
	}
}

// Publish appends the envelope to the queue for its (recipient, conversation)
// key. When the queue exceeds the configured depth, the oldest envelopes are
// discarded first so the newest are always retained.
func (m *Mailbox) Publish(env model.AgentEnvelope) {
	q := m.getOrCreate(key{env.RecipientAgentID, env.ConversationID})

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, env)
	if overflow := len(q.items) - m.maxDepth; overflow > 0 {
		q.items = q.items[overflow:]
	}
}

// Consume atomically drains and returns all queued envelopes for the key, in
// FIFO order. A second immediate consume returns an empty result.
func (m *Mailbox) Consume(agentID, conversationID string) []model.AgentEnvelope {
	m.mu.RLock()
	q, ok := m.queues[key{agentID, conversationID}]
	m.mu.RUnlock()
	if !ok {
		return []model.AgentEnvelope{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	if items == nil {
		return []model.AgentEnvelope{}
	}
	return items
}

func (m *Mailbox) getOrCreate(k key) *queue {
	m.mu.RLock()
	q, ok := m.queues[k]
	m.mu.RUnlock()
	if ok {
		return q
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[k]; ok {
		return q
	}
	q = &queue{}
	m.queues[k] = q
	return q
}
