package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoDBAPI is the subset of *dynamodb.Client used by DynamoSink.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// onboardingItem is the DynamoDB row written per envelope.
type onboardingItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	FirstName string `dynamodbav:"FirstName"`
	LastName  string `dynamodbav:"LastName"`
	Email     string `dynamodbav:"Email"`
	Data      string `dynamodbav:"Data"`
	Timestamp string `dynamodbav:"Timestamp"`
}

// DynamoSink writes each envelope as one item keyed by its id.
type DynamoSink struct {
	client DynamoDBAPI
	table  string
}

// NewDynamoSink creates a DynamoSink.
func NewDynamoSink(client DynamoDBAPI, table string) *DynamoSink {
	return &DynamoSink{client: client, table: table}
}

// Name implements Sink.
func (s *DynamoSink) Name() string { return "dynamodb" }

// Send implements Sink. The put is conditional so a duplicate id never
// overwrites an earlier record.
func (s *DynamoSink) Send(ctx context.Context, env Envelope) (string, error) {
	data, err := env.Marshal()
	if err != nil {
		return "", err
	}

	item := onboardingItem{
		PK:        "ONBOARDING#" + env.ID,
		SK:        env.ReceivedAt.UTC().Format(time.RFC3339Nano),
		FirstName: env.Customer.FirstName,
		LastName:  env.Customer.LastName,
		Email:     env.Customer.Email,
		Data:      string(data),
		Timestamp: env.ReceivedAt.UTC().Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return "", fmt.Errorf("marshaling item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return "", fmt.Errorf("putting item into %s: %w", s.table, err)
	}
	return s.table + "/" + item.PK, nil
}

// Check implements Checker.
func (s *DynamoSink) Check(ctx context.Context) error {
	if _, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)}); err != nil {
		return fmt.Errorf("describe table %s: %w", s.table, err)
	}
	return nil
}
