package protocol

import "context"

// Sender delivers a message to the other side. Send must not block.
type Sender interface {
	Send(msg Message)
}

// Handler consumes messages arriving from the other side.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(msg Message)

func (f SenderFunc) Send(msg Message) {
	f(msg)
}
