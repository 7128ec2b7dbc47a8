package run_queue

import (
	"context"
	"sync/atomic"

	"simflow/commons/settings"
	runQueue "simflow/internal/consumer/run_queue/iface"
	runQueueImpl "simflow/internal/consumer/run_queue/impl"
	"simflow/internal/logger"
	queue "simflow/internal/queue/iface"
	"simflow/internal/queue/sqs"

	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/fx"
)

type RunQueueParams struct {
	fx.In

	Settings  *settings.Settings
	Logger    logger.Logger
	SQSClient *awssqs.Client `optional:"true"`
}

type RunQueueResult struct {
	fx.Out

	Publisher runQueue.RunPublisher
	Binder    *ConsumerBinder

	// Queue is nil when async runs are disabled.
	Queue queue.Queue `name:"run_queue"`
}

// ConsumerBinder lets the queue be built before the consumer that depends
// on the run service, which itself publishes to the queue.
type ConsumerBinder struct {
	consumer atomic.Pointer[runQueue.RunConsumer]
}

func (b *ConsumerBinder) Bind(c runQueue.RunConsumer) {
	b.consumer.Store(&c)
}

func (b *ConsumerBinder) ProcessMessage(ctx context.Context, msg runQueue.RunMessage) bool {
	c := b.consumer.Load()
	if c == nil {
		return false
	}
	return (*c).ProcessMessage(ctx, msg)
}

func ProvideRunQueue(params RunQueueParams) RunQueueResult {
	binder := &ConsumerBinder{}
	cfg := params.Settings.Queue

	if !cfg.Enabled || params.SQSClient == nil {
		return RunQueueResult{
			Publisher: runQueueImpl.NewDisabledPublisher(),
			Binder:    binder,
		}
	}

	q := sqs.NewSQSQueue(
		params.SQSClient,
		sqs.QueueConfig{
			QueueURL:          cfg.URL,
			WorkerCount:       cfg.Workers,
			MaxMessages:       1,
			WaitTimeSeconds:   cfg.WaitTimeSeconds,
			VisibilityTimeout: cfg.VisibilityTimeout,
		},
		queue.MessageProcessor[runQueue.RunMessage](binder),
		params.Logger,
	)

	return RunQueueResult{
		Publisher: runQueueImpl.NewRunPublisher(q, params.Logger),
		Queue:     q,
		Binder:    binder,
	}
}

// RunQueueModule provides the run queue and starts its consumer when enabled.
func RunQueueModule() fx.Option {
	return fx.Options(
		fx.Provide(ProvideRunQueue),
		fx.Invoke(func(params struct {
			fx.In
			Lifecycle fx.Lifecycle
			Queue     queue.Queue `name:"run_queue" optional:"true"`
			Binder    *ConsumerBinder
			Executor  runQueue.RunExecutor
			Logger    logger.Logger
		}) {
			params.Binder.Bind(runQueueImpl.NewRunConsumer(params.Executor, params.Logger))

			if params.Queue == nil {
				params.Logger.Info("run queue disabled")
				return
			}
			params.Lifecycle.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					params.Logger.Info("starting run queue consumer")
					return params.Queue.StartConsumer(ctx)
				},
				OnStop: func(ctx context.Context) error {
					params.Logger.Info("stopping run queue consumer")
					return params.Queue.StopConsumer(ctx)
				},
			})
		}),
	)
}
