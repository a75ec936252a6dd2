package bridge

import (
	"context"
	"log/slog"
	"sync"

	"kleinimg/internal/protocol"
)

// Loopback wires a core and a host together through two mailboxes.
type Loopback struct {
	toCore *Mailbox
	toHost *Mailbox
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a loopback. With wire set, messages are serialized through the
// protocol envelope as they would be across a process boundary.
func New(wire bool, logger *slog.Logger) *Loopback {
	return &Loopback{
		toCore: NewMailbox("core", wire, logger),
		toHost: NewMailbox("host", wire, logger),
	}
}

// CoreSender is the sender the core uses to reach the host.
func (l *Loopback) CoreSender() protocol.Sender {
	return l.toHost
}

// HostSender is the sender the host uses to reach the core.
func (l *Loopback) HostSender() protocol.Sender {
	return l.toCore
}

// Start runs both loops until Close.
func (l *Loopback) Start(ctx context.Context, core, host protocol.Handler) {
	ctx, l.cancel = context.WithCancel(ctx)

	l.wg.Add(2)
	go func() {
		defer l.wg.Done()
		l.toCore.Run(ctx, core)
	}()
	go func() {
		defer l.wg.Done()
		l.toHost.Run(ctx, host)
	}()
}

// Pending returns the number of messages waiting on either side.
func (l *Loopback) Pending() int {
	return l.toCore.Len() + l.toHost.Len()
}

// Close drains both mailboxes and stops the loops.
func (l *Loopback) Close() {
	l.toCore.Close()
	l.toHost.Close()
	l.wg.Wait()
	if l.cancel != nil {
		l.cancel()
	}
}
