// Package bridge connects the core and a host in one process. Each side has
// a mailbox drained by its own loop, so every handler sees its messages one
// at a time and in send order.
package bridge

import (
	"context"
	"log/slog"
	"sync"

	"kleinimg/internal/protocol"
)

// Mailbox is an unbounded FIFO of messages. Send never blocks, which lets
// handlers on both sides send to each other without deadlocking.
type Mailbox struct {
	name   string
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []protocol.Message
	closed bool
	wire   bool
	logger *slog.Logger
}

// NewMailbox creates a mailbox. With wire set, every message is encoded and
// decoded through the protocol envelope on the way in.
func NewMailbox(name string, wire bool, logger *slog.Logger) *Mailbox {
	m := &Mailbox{name: name, wire: wire, logger: logger}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Send enqueues msg. Messages sent after Close are dropped.
func (m *Mailbox) Send(msg protocol.Message) {
	if m.wire {
		data, err := protocol.Marshal(msg)
		if err != nil {
			m.logger.Error("Failed to encode message", "mailbox", m.name, "type", msg.Type(), "error", err)
			return
		}
		msg, err = protocol.Unmarshal(data)
		if err != nil {
			m.logger.Error("Failed to decode message", "mailbox", m.name, "error", err)
			return
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.logger.Debug("Dropping message after close", "mailbox", m.name, "type", msg.Type())
		return
	}
	m.queue = append(m.queue, msg)
	m.cond.Signal()
}

// Len returns the number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close stops accepting messages. Run returns once the queue is drained.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
}

// Run hands queued messages to h one at a time until the mailbox is closed
// and empty. Handler errors are logged and do not stop the loop.
func (m *Mailbox) Run(ctx context.Context, h protocol.Handler) {
	for {
		msg, ok := m.next()
		if !ok {
			return
		}
		if err := h.Handle(ctx, msg); err != nil {
			m.logger.Warn("Message handler failed", "mailbox", m.name, "type", msg.Type(), "error", err)
		}
	}
}

func (m *Mailbox) next() (protocol.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.queue) == 0 && !m.closed {
		m.cond.Wait()
	}
	if len(m.queue) == 0 {
		return nil, false
	}

	msg := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return msg, true
}
