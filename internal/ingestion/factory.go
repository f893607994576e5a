package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ignite/onboarding-gateway/internal/config"
	"github.com/ignite/onboarding-gateway/internal/pkg/logger"
)

// NewSink builds the sink selected by cfg.Driver. The returned cleanup
// func is never nil.
func NewSink(ctx context.Context, cfg config.IngestionConfig) (Sink, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(cfg.Driver) {
	case config.DriverHTTP:
		return NewHTTPSink(nil, cfg.Endpoint, cfg.Timeout()), noop, nil

	case config.DriverS3, config.DriverSQS, config.DriverDynamoDB:
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		switch strings.ToLower(cfg.Driver) {
		case config.DriverS3:
			return NewS3Sink(NewS3Client(awsCfg), cfg.S3Bucket, cfg.S3Prefix), noop, nil
		case config.DriverSQS:
			return NewSQSSink(sqs.NewFromConfig(awsCfg), cfg.SQSQueueURL), noop, nil
		default:
			return NewDynamoSink(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable), noop, nil
		}

	case config.DriverRedis:
		client, err := NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		sink := NewRedisSink(client, cfg.RedisStream)
		return sink, sink.Close, nil
	}

	return nil, noop, fmt.Errorf("unknown ingestion driver %q", cfg.Driver)
}

// New builds a Forwarder for the configured sink.
func New(ctx context.Context, cfg config.IngestionConfig, log *logger.Logger) (*Forwarder, func() error, error) {
	sink, cleanup, err := NewSink(ctx, cfg)
	if err != nil {
		return nil, cleanup, err
	}
	return NewForwarder(sink, cfg.Timeout(), log), cleanup, nil
}
