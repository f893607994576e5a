package ingestion

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink appends each envelope to a Redis stream.
type RedisSink struct {
	client *redis.Client
	stream string
}

// NewRedisSink creates a RedisSink.
func NewRedisSink(client *redis.Client, stream string) *RedisSink {
	return &RedisSink{client: client, stream: stream}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Name implements Sink.
func (s *RedisSink) Name() string { return "redis" }

// Send implements Sink and returns the stream entry id.
func (s *RedisSink) Send(ctx context.Context, env Envelope) (string, error) {
	body, err := env.Marshal()
	if err != nil {
		return "", err
	}

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"id":      env.ID,
			"payload": string(body),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return id, nil
}

// Check implements Checker.
func (s *RedisSink) Check(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
