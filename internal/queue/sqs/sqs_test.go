package sqsqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outbound/internal/domain"
)

type fakeSQS struct {
	mu      sync.Mutex
	sent    []*sqs.SendMessageInput
	pending []types.Message
	deleted []string
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m1")}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	if len(f.pending) > 0 {
		batch := f.pending
		f.pending = nil
		f.mu.Unlock()
		return &sqs.ReceiveMessageOutput{Messages: batch}, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) deletedHandles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

var job = domain.DispatchJob{
	RequestID:   "req_1",
	ContactID:   "cust_1",
	ContactType: domain.KindCustomer,
	Channel:     domain.ChannelSMS,
	Content:     "hi",
}

func TestEnqueueStandardQueue(t *testing.T) {
	f := &fakeSQS{}
	p := &Producer{SQS: f, QueueURL: "http://localhost:4566/000000000000/outbound-dispatch"}
	require.NoError(t, p.EnqueueDispatch(context.Background(), job))

	require.Len(t, f.sent, 1)
	assert.Nil(t, f.sent[0].MessageGroupId)
	assert.Nil(t, f.sent[0].MessageDeduplicationId)

	var got domain.DispatchJob
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(f.sent[0].MessageBody)), &got))
	assert.Equal(t, job, got)
}

func TestEnqueueFIFOQueue(t *testing.T) {
	f := &fakeSQS{}
	p := &Producer{SQS: f, QueueURL: "http://localhost:4566/000000000000/outbound-dispatch.fifo"}
	require.NoError(t, p.EnqueueDispatch(context.Background(), job))

	assert.Equal(t, "customer:cust_1", aws.ToString(f.sent[0].MessageGroupId))
	assert.Equal(t, "req_1", aws.ToString(f.sent[0].MessageDeduplicationId))
}

func message(handle, body string) types.Message {
	return types.Message{MessageId: aws.String(handle), ReceiptHandle: aws.String(handle), Body: aws.String(body)}
}

func TestPollConcurrentDeletesHandledAndMalformed(t *testing.T) {
	body, _ := json.Marshal(job)
	failing := job
	failing.RequestID = "req_fail"
	failBody, _ := json.Marshal(failing)

	f := &fakeSQS{pending: []types.Message{
		message("ok", string(body)),
		message("bad", "{not json"),
		message("retry", string(failBody)),
		{ReceiptHandle: aws.String("empty")},
	}}
	c := &Consumer{SQS: f, QueueURL: "q", MaxMessages: 10}

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var handled []string
	done := make(chan error, 1)
	go func() {
		done <- c.PollConcurrent(ctx, 2, func(_ context.Context, j domain.DispatchJob) error {
			mu.Lock()
			handled = append(handled, j.RequestID)
			mu.Unlock()
			if j.RequestID == "req_fail" {
				return errors.New("store unavailable")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(f.deletedHandles()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.ElementsMatch(t, []string{"ok", "bad", "empty"}, f.deletedHandles())
	assert.ElementsMatch(t, []string{"req_1", "req_fail"}, handled)
}
