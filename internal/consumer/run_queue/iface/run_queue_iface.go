package run_queue

import (
	"context"
	"errors"

	"simflow/internal/domain"
)

// ErrQueueDisabled is returned by a publisher when async runs are off.
var ErrQueueDisabled = errors.New("run queue is disabled")

// RunMessage is one queued pipeline run.
type RunMessage struct {
	RunID       string            `json:"run_id"`
	Request     domain.RunRequest `json:"request"`
	SubmittedAt int64             `json:"submitted_at"`
}

// RunExecutor executes a queued run. Returning false leaves the message on
// the queue for redelivery.
type RunExecutor interface {
	ExecuteQueued(ctx context.Context, req *domain.RunRequest, submittedAt int64) bool
}

// RunConsumer processes run queue messages.
type RunConsumer interface {
	ProcessMessage(ctx context.Context, message RunMessage) bool
}

// RunPublisher puts runs on the queue.
type RunPublisher interface {
	Publish(ctx context.Context, message RunMessage) error
}
