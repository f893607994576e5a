package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ignite/onboarding-gateway/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	put     *s3.PutObjectInput
	body    []byte
	putErr  error
	headErr error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	f.body, _ = io.ReadAll(in.Body)
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func TestS3SinkWritesDatedObject(t *testing.T) {
	api := &fakeS3{}
	sink := NewS3Sink(api, "onboarding-bucket", "onboarding")
	env := NewEnvelope(jane, time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC))

	location, err := sink.Send(context.Background(), env)
	require.NoError(t, err)

	wantKey := "onboarding/2026/03/09/" + env.ID + ".json"
	assert.Equal(t, "s3://onboarding-bucket/"+wantKey, location)
	assert.Equal(t, wantKey, aws.ToString(api.put.Key))
	assert.Equal(t, "onboarding-bucket", aws.ToString(api.put.Bucket))
	assert.Equal(t, "application/json", aws.ToString(api.put.ContentType))

	var stored Envelope
	require.NoError(t, json.Unmarshal(api.body, &stored))
	assert.Equal(t, env.ID, stored.ID)
	assert.Equal(t, jane, stored.Customer)
}

func TestS3SinkErrors(t *testing.T) {
	api := &fakeS3{putErr: errors.New("access denied"), headErr: errors.New("no such bucket")}
	sink := NewS3Sink(api, "b", "p")

	_, err := sink.Send(context.Background(), NewEnvelope(jane, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")

	assert.ErrorContains(t, sink.Check(context.Background()), "no such bucket")
}

type fakeSQS struct {
	sent    *sqs.SendMessageInput
	sendErr error
	attrErr error
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = in
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func (f *fakeSQS) GetQueueAttributes(ctx context.Context, in *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return &sqs.GetQueueAttributesOutput{}, f.attrErr
}

func TestSQSSinkPublishesEnvelope(t *testing.T) {
	api := &fakeSQS{}
	sink := NewSQSSink(api, "https://sqs.us-east-1.amazonaws.com/123/onboarding")
	env := NewEnvelope(jane, time.Now())

	location, err := sink.Send(context.Background(), env)
	require.NoError(t, err)

	assert.Equal(t, "msg-1", location)
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/onboarding", aws.ToString(api.sent.QueueUrl))
	assert.True(t, strings.Contains(aws.ToString(api.sent.MessageBody), env.ID))
	assert.Equal(t, env.ID, aws.ToString(api.sent.MessageAttributes["ingestion_id"].StringValue))
	assert.NoError(t, sink.Check(context.Background()))
}

func TestSQSSinkError(t *testing.T) {
	sink := NewSQSSink(&fakeSQS{sendErr: errors.New("throttled")}, "q")
	_, err := sink.Send(context.Background(), NewEnvelope(jane, time.Now()))
	assert.ErrorContains(t, err, "throttled")
}

type fakeDynamo struct {
	put    *dynamodb.PutItemInput
	putErr error
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.put = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, nil
}

func TestDynamoSinkPutsConditionalItem(t *testing.T) {
	api := &fakeDynamo{}
	sink := NewDynamoSink(api, "onboarding")
	env := NewEnvelope(jane, time.Now())

	location, err := sink.Send(context.Background(), env)
	require.NoError(t, err)

	assert.Equal(t, "onboarding/ONBOARDING#"+env.ID, location)
	assert.Equal(t, "onboarding", aws.ToString(api.put.TableName))
	assert.Equal(t, "attribute_not_exists(PK)", aws.ToString(api.put.ConditionExpression))

	var item onboardingItem
	require.NoError(t, attributevalue.UnmarshalMap(api.put.Item, &item))
	assert.Equal(t, "ONBOARDING#"+env.ID, item.PK)
	assert.Equal(t, "Jane", item.FirstName)
	assert.Equal(t, "jane.doe@example.com", item.Email)
	assert.Contains(t, item.Data, env.ID)
	assert.NoError(t, sink.Check(context.Background()))
}

func TestLoadAWSConfigAppliesOverrides(t *testing.T) {
	cfg := config.IngestionConfig{
		AWSRegion:    "eu-central-1",
		AWSAccessKey: "AKIDEXAMPLE",
		AWSSecretKey: "secret",
		AWSEndpoint:  "http://localhost:4566",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "eu-central-1", awsCfg.Region)
	require.NotNil(t, awsCfg.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *awsCfg.BaseEndpoint)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
}
