package run_queue

import (
	"context"

	runQueue "simflow/internal/consumer/run_queue/iface"
	"simflow/internal/logger"
	queue "simflow/internal/queue/iface"
)

type runConsumer struct {
	executor runQueue.RunExecutor
	logger   logger.Logger
}

func NewRunConsumer(executor runQueue.RunExecutor, log logger.Logger) runQueue.RunConsumer {
	return &runConsumer{
		executor: executor,
		logger:   log.With(logger.String("component", "run_consumer")),
	}
}

func (c *runConsumer) ProcessMessage(ctx context.Context, message runQueue.RunMessage) bool {
	if message.RunID == "" || message.RunID != message.Request.RunID {
		c.logger.Error("dropping run message with mismatched run id",
			logger.String("run_id", message.RunID),
			logger.String("request_run_id", message.Request.RunID))
		return true
	}

	c.logger.Info("processing queued run", logger.String("run_id", message.RunID))
	req := message.Request
	return c.executor.ExecuteQueued(ctx, &req, message.SubmittedAt)
}

type runPublisher struct {
	queue  queue.Queue
	logger logger.Logger
}

func NewRunPublisher(q queue.Queue, log logger.Logger) runQueue.RunPublisher {
	return &runPublisher{
		queue:  q,
		logger: log.With(logger.String("component", "run_publisher")),
	}
}

func (p *runPublisher) Publish(ctx context.Context, message runQueue.RunMessage) error {
	envelope := queue.Envelope{
		Key:  message.RunID,
		Body: message,
		Attributes: map[string]string{
			"run_id":        message.RunID,
			"analysis_type": string(message.Request.AnalysisType),
		},
	}
	if err := p.queue.Send(ctx, envelope); err != nil {
		p.logger.Error("failed to publish run",
			logger.String("run_id", message.RunID),
			logger.Error(err))
		return err
	}

	p.logger.Info("run queued", logger.String("run_id", message.RunID))
	return nil
}

type disabledPublisher struct{}

// NewDisabledPublisher rejects every publish with ErrQueueDisabled.
func NewDisabledPublisher() runQueue.RunPublisher {
	return disabledPublisher{}
}

func (disabledPublisher) Publish(context.Context, runQueue.RunMessage) error {
	return runQueue.ErrQueueDisabled
}
