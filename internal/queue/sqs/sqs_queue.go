package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"simflow/internal/logger"
	queue "simflow/internal/queue/iface"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type QueueConfig struct {
	QueueURL        string
	WorkerCount     int
	MaxMessages     int32
	WaitTimeSeconds int32
	// VisibilityTimeout is renewed while a message is processed, so a run
	// longer than the timeout is not redelivered to another worker.
	VisibilityTimeout int32
}

// FIFO reports whether the queue URL names a FIFO queue.
func (c QueueConfig) FIFO() bool {
	return strings.HasSuffix(c.QueueURL, ".fifo")
}

// API is the subset of the SQS client the queue calls.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, opts ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// SQSQueue publishes JSON messages and consumes them with a fixed pool of
// long-polling workers.
type SQSQueue[T any] struct {
	client    API
	config    QueueConfig
	logger    logger.Logger
	processor queue.MessageProcessor[T]

	mu      sync.Mutex
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

func NewSQSQueue[T any](
	client API,
	config QueueConfig,
	processor queue.MessageProcessor[T],
	log logger.Logger,
) queue.Queue {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.MaxMessages <= 0 {
		config.MaxMessages = 1
	}
	if config.WaitTimeSeconds <= 0 {
		config.WaitTimeSeconds = 20
	}
	if config.VisibilityTimeout <= 0 {
		config.VisibilityTimeout = 900
	}

	return &SQSQueue[T]{
		client:    client,
		config:    config,
		logger:    log.With(logger.String("component", "sqs_queue"), logger.String("queue_url", config.QueueURL)),
		processor: processor,
	}
}

func (q *SQSQueue[T]) Send(ctx context.Context, envelope queue.Envelope) error {
	input, err := q.sendInput(envelope)
	if err != nil {
		return err
	}

	if _, err := q.client.SendMessage(ctx, input); err != nil {
		q.logger.Error("failed to send message", logger.String("key", envelope.Key), logger.Error(err))
		return fmt.Errorf("send message: %w", err)
	}

	q.logger.Debug("message sent", logger.String("key", envelope.Key))
	return nil
}

func (q *SQSQueue[T]) sendInput(envelope queue.Envelope) (*sqs.SendMessageInput, error) {
	body, err := json.Marshal(envelope.Body)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.config.QueueURL),
		MessageBody: aws.String(string(body)),
	}

	if len(envelope.Attributes) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(envelope.Attributes))
		for k, v := range envelope.Attributes {
			input.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}

	if q.config.FIFO() {
		if envelope.Key == "" {
			return nil, errors.New("fifo queue requires a message key")
		}
		input.MessageGroupId = aws.String(envelope.Key)
		input.MessageDeduplicationId = aws.String(envelope.Key)
	}
	return input, nil
}

func (q *SQSQueue[T]) StartConsumer(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancel != nil {
		return errors.New("consumer already running")
	}

	// workers outlive the startup context
	workerCtx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	q.logger.Info("starting consumer", logger.Int("worker_count", q.config.WorkerCount))

	for i := 1; i <= q.config.WorkerCount; i++ {
		q.workers.Add(1)
		go q.poll(workerCtx, i)
	}
	return nil
}

// StopConsumer stops polling and waits for in-flight messages to finish.
func (q *SQSQueue[T]) StopConsumer(ctx context.Context) error {
	q.mu.Lock()
	cancel := q.cancel
	q.cancel = nil
	q.mu.Unlock()

	if cancel == nil {
		return errors.New("consumer not running")
	}
	cancel()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("consumer stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for workers: %w", ctx.Err())
	}
}

func (q *SQSQueue[T]) poll(ctx context.Context, workerID int) {
	defer q.workers.Done()

	log := q.logger.With(logger.Int("worker_id", workerID))
	for ctx.Err() == nil {
		out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:              aws.String(q.config.QueueURL),
			MaxNumberOfMessages:   q.config.MaxMessages,
			WaitTimeSeconds:       q.config.WaitTimeSeconds,
			VisibilityTimeout:     q.config.VisibilityTimeout,
			MessageAttributeNames: []string{"All"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("failed to receive messages", logger.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range out.Messages {
			// a received message is always processed to completion
			q.handle(context.Background(), msg, log)
		}
	}
}

func (q *SQSQueue[T]) handle(ctx context.Context, msg types.Message, log logger.Logger) {
	log = log.With(logger.String("message_id", aws.ToString(msg.MessageId)))

	var message T
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &message); err != nil {
		log.Error("dropping undecodable message", logger.Error(err))
		q.delete(ctx, msg, log)
		return
	}

	stop := q.keepInvisible(msg, log)
	ok := q.processor.ProcessMessage(ctx, message)
	stop()

	if ok {
		q.delete(ctx, msg, log)
		log.Info("message processed")
		return
	}
	log.Warn("message left for redelivery")
}

// keepInvisible renews the message's visibility at half the timeout until
// the returned stop func is called.
func (q *SQSQueue[T]) keepInvisible(msg types.Message, log logger.Logger) (stop func()) {
	interval := time.Duration(q.config.VisibilityTimeout) * time.Second / 2
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, err := q.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
					QueueUrl:          aws.String(q.config.QueueURL),
					ReceiptHandle:     msg.ReceiptHandle,
					VisibilityTimeout: q.config.VisibilityTimeout,
				})
				if err != nil && ctx.Err() == nil {
					log.Warn("failed to extend message visibility", logger.Error(err))
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (q *SQSQueue[T]) delete(ctx context.Context, msg types.Message, log logger.Logger) {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.config.QueueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		log.Error("failed to delete message", logger.Error(err))
	}
}
