package sqs

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/payvide/payworker/pkg/queue"
)

// maxDelay is the SQS DelaySeconds ceiling. Longer backoffs are capped;
// the envelope's attempt counter keeps the retry budget correct.
const maxDelay = 900 * time.Second

// SQSDriver implements queue.Driver on SQS. SQS has no cross-message
// priority, so each tier maps to its own queue URL and Pop polls tiers
// in rank order.
type SQSDriver struct {
	client    *sqs.Client
	queueURLs map[queue.Priority]string
}

// NewSQSDriver creates a new SQS driver. urls maps each priority tier
// to a queue URL; missing tiers fall back to the medium URL.
func NewSQSDriver(client *sqs.Client, urls map[queue.Priority]string) *SQSDriver {
	return &SQSDriver{
		client:    client,
		queueURLs: urls,
	}
}

func (s *SQSDriver) urlFor(priority queue.Priority) string {
	if u, ok := s.queueURLs[priority]; ok {
		return u
	}
	return s.queueURLs[queue.PriorityMedium]
}

// Pop polls the tier queues highest-first with a short wait each, so an
// urgent backlog is always drained before lower tiers.
func (s *SQSDriver) Pop(ctx context.Context, queueName string) (*queue.Job, error) {
	for {
		for _, tier := range queue.Tiers() {
			url := s.urlFor(tier)
			if url == "" {
				continue
			}

			input := &sqs.ReceiveMessageInput{
				QueueUrl:            aws.String(url),
				MaxNumberOfMessages: 1,
				WaitTimeSeconds:     1,
				AttributeNames: []types.QueueAttributeName{
					types.QueueAttributeNameAll,
				},
			}

			resp, err := s.client.ReceiveMessage(ctx, input)
			if err != nil {
				return nil, err
			}
			if len(resp.Messages) == 0 {
				continue
			}

			msg := resp.Messages[0]
			id := ""
			if msg.ReceiptHandle != nil {
				// Receipt handle doubles as the ack token; the tier URL
				// is recovered from the envelope priority on delete.
				id = *msg.ReceiptHandle
			}
			body := []byte("")
			if msg.Body != nil {
				body = []byte(*msg.Body)
			}
			return &queue.Job{ID: id, Body: body}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
}

// Push sends the job to its tier queue, using DelaySeconds for backoff
// and scheduled submissions.
func (s *SQSDriver) Push(ctx context.Context, queueName string, body []byte, priority queue.Priority, delay time.Duration) error {
	if delay > maxDelay {
		delay = maxDelay
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.urlFor(priority)),
		MessageBody: aws.String(string(body)),
	}
	if delay > 0 {
		input.DelaySeconds = int32(delay / time.Second)
	}

	_, err := s.client.SendMessage(ctx, input)
	return err
}

// Ack deletes the message from its tier queue.
func (s *SQSDriver) Ack(ctx context.Context, job *queue.Job) error {
	priority := queue.PriorityMedium
	if job.Envelope != nil && job.Envelope.Priority.Valid() {
		priority = job.Envelope.Priority
	}

	input := &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.urlFor(priority)),
		ReceiptHandle: aws.String(job.ID),
	}

	_, err := s.client.DeleteMessage(ctx, input)
	return err
}
