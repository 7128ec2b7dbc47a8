package sqs

import (
	"context"
	"sync"
	"testing"

	"simflow/internal/logger"
	queue "simflow/internal/queue/iface"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	mu      sync.Mutex
	sent    []*sqs.SendMessageInput
	deleted []string
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) ChangeMessageVisibility(context.Context, *sqs.ChangeMessageVisibilityInput, ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

type testMessage struct {
	RunID string `json:"run_id"`
}

func newTestQueue(url string, client API, process func(testMessage) bool) *SQSQueue[testMessage] {
	q := NewSQSQueue[testMessage](client, QueueConfig{QueueURL: url},
		queue.MessageProcessorFunc[testMessage](func(_ context.Context, m testMessage) bool {
			return process(m)
		}),
		logger.NewNopLogger())
	return q.(*SQSQueue[testMessage])
}

func TestSendStandardQueue(t *testing.T) {
	client := &fakeSQS{}
	q := newTestQueue("https://sqs.local/123/runs", client, nil)

	err := q.Send(context.Background(), queue.Envelope{
		Key:        "run-1",
		Body:       testMessage{RunID: "run-1"},
		Attributes: map[string]string{"run_id": "run-1"},
	})
	require.NoError(t, err)

	require.Len(t, client.sent, 1)
	in := client.sent[0]
	assert.JSONEq(t, `{"run_id":"run-1"}`, aws.ToString(in.MessageBody))
	assert.Nil(t, in.MessageGroupId)
	assert.Equal(t, "run-1", aws.ToString(in.MessageAttributes["run_id"].StringValue))
}

func TestSendFIFOQueueUsesKey(t *testing.T) {
	client := &fakeSQS{}
	q := newTestQueue("https://sqs.local/123/runs.fifo", client, nil)

	require.NoError(t, q.Send(context.Background(), queue.Envelope{Key: "run-1", Body: testMessage{RunID: "run-1"}}))
	in := client.sent[0]
	assert.Equal(t, "run-1", aws.ToString(in.MessageGroupId))
	assert.Equal(t, "run-1", aws.ToString(in.MessageDeduplicationId))

	assert.Error(t, q.Send(context.Background(), queue.Envelope{Body: testMessage{}}))
}

func TestHandleDeletesOnlyProcessedMessages(t *testing.T) {
	client := &fakeSQS{}
	var seen []string
	q := newTestQueue("https://sqs.local/123/runs", client, func(m testMessage) bool {
		seen = append(seen, m.RunID)
		return m.RunID == "done"
	})
	log := logger.NewNopLogger()

	q.handle(context.Background(), types.Message{Body: aws.String(`{"run_id":"done"}`), ReceiptHandle: aws.String("h1")}, log)
	q.handle(context.Background(), types.Message{Body: aws.String(`{"run_id":"busy"}`), ReceiptHandle: aws.String("h2")}, log)
	q.handle(context.Background(), types.Message{Body: aws.String(`not json`), ReceiptHandle: aws.String("h3")}, log)

	assert.Equal(t, []string{"done", "busy"}, seen)
	assert.Equal(t, []string{"h1", "h3"}, client.deleted)
}

func TestConsumerStartStop(t *testing.T) {
	q := newTestQueue("https://sqs.local/123/runs", &fakeSQS{}, func(testMessage) bool { return true })

	require.NoError(t, q.StartConsumer(context.Background()))
	assert.Error(t, q.StartConsumer(context.Background()))
	require.NoError(t, q.StopConsumer(context.Background()))
	assert.Error(t, q.StopConsumer(context.Background()))
}
