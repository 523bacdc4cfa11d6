package sqsqueue

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"outbound/internal/domain"
)

// API is the subset of *sqs.Client used by the producer and consumer.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type Producer struct {
	SQS      API
	QueueURL string
}

func (p *Producer) EnqueueDispatch(ctx context.Context, job domain.DispatchJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.QueueURL),
		MessageBody: aws.String(string(body)),
	}
	if isFIFO(p.QueueURL) {
		// ordered per contact
		in.MessageGroupId = aws.String(messageGroupID(job))
		in.MessageDeduplicationId = aws.String(job.RequestID)
	}
	_, err = p.SQS.SendMessage(ctx, in)
	return err
}

func isFIFO(queueURL string) bool { return strings.HasSuffix(queueURL, ".fifo") }

func messageGroupID(job domain.DispatchJob) string {
	return string(job.ContactType) + ":" + job.ContactID
}
