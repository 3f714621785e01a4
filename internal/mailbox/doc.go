// Package mailbox provides a bounded in-memory message queue for
// asynchronous agent-to-agent handoff, keyed by recipient and conversation.
package mailbox
