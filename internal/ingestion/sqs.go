package ingestion

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of *sqs.Client used by SQSSink.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// SQSSink publishes each envelope as one message.
type SQSSink struct {
	client   SQSAPI
	queueURL string
}

// NewSQSSink creates an SQSSink.
func NewSQSSink(client SQSAPI, queueURL string) *SQSSink {
	return &SQSSink{client: client, queueURL: queueURL}
}

// Name implements Sink.
func (s *SQSSink) Name() string { return "sqs" }

// Send implements Sink.
func (s *SQSSink) Send(ctx context.Context, env Envelope) (string, error) {
	body, err := env.Marshal()
	if err != nil {
		return "", err
	}

	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"ingestion_id": {DataType: aws.String("String"), StringValue: aws.String(env.ID)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("sending message to %s: %w", s.queueURL, err)
	}
	return aws.ToString(out.MessageId), nil
}

// Check implements Checker.
func (s *SQSSink) Check(ctx context.Context) error {
	_, err := s.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(s.queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return fmt.Errorf("queue attributes %s: %w", s.queueURL, err)
	}
	return nil
}
