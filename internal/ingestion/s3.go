package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of *s3.Client used by S3Sink.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Sink writes each envelope as one JSON object under
// <prefix>/YYYY/MM/DD/<id>.json.
type S3Sink struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Sink creates an S3Sink.
func NewS3Sink(client S3API, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

// NewS3Client builds an S3 client from the shared AWS config. Path-style
// addressing is forced when a custom endpoint is set.
func NewS3Client(awsCfg aws.Config) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = awsCfg.BaseEndpoint != nil
	})
}

// Name implements Sink.
func (s *S3Sink) Name() string { return "s3" }

// ObjectKey returns the key an envelope is written to.
func (s *S3Sink) ObjectKey(env Envelope) string {
	day := env.ReceivedAt.UTC().Format("2006/01/02")
	return path.Join(s.prefix, day, env.ID+".json")
}

// Send implements Sink.
func (s *S3Sink) Send(ctx context.Context, env Envelope) (string, error) {
	body, err := env.Marshal()
	if err != nil {
		return "", err
	}

	key := s.ObjectKey(env)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("putting s3://%s/%s: %w", s.bucket, key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// Check implements Checker.
func (s *S3Sink) Check(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}
	return nil
}
