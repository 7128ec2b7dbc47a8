package queue

import (
	"context"
)

// MessageProcessor handles one decoded message. Returning true deletes the
// message; false leaves it for redelivery after the visibility timeout.
type MessageProcessor[T any] interface {
	ProcessMessage(ctx context.Context, message T) bool
}

type MessageProcessorFunc[T any] func(ctx context.Context, message T) bool

func (f MessageProcessorFunc[T]) ProcessMessage(ctx context.Context, message T) bool {
	return f(ctx, message)
}

// Envelope carries a message body plus the routing keys the broker uses.
// On FIFO queues Key is both the message group and the deduplication id, so
// a run id published twice within the dedup window is accepted once.
type Envelope struct {
	Key        string
	Body       any
	Attributes map[string]string
}

type Queue interface {
	Send(ctx context.Context, envelope Envelope) error
	StartConsumer(ctx context.Context) error
	StopConsumer(ctx context.Context) error
}
