package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Ingestion drivers understood by the ingestion package.
const (
	DriverHTTP     = "http"
	DriverS3       = "s3"
	DriverSQS      = "sqs"
	DriverDynamoDB = "dynamodb"
	DriverRedis    = "redis"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                   int      `yaml:"port"`
	Host                   string   `yaml:"host"`
	MaxBodyBytes           int64    `yaml:"max_body_bytes"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
	AllowedOrigins         []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for net/http.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// ShutdownTimeout returns the graceful shutdown budget as a duration
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DispatchConfig controls the bounded wait in front of ingestion.
type DispatchConfig struct {
	// GracePeriodMS is how long a request waits for ingestion before it is
	// answered with 202 and the forwarding call continues detached.
	GracePeriodMS       int `yaml:"grace_period_ms"`
	DrainTimeoutSeconds int `yaml:"drain_timeout_seconds"`
}

// GracePeriod returns the grace period as a duration
func (c DispatchConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodMS) * time.Millisecond
}

// DrainTimeout returns how long shutdown waits for detached forwarding calls
func (c DispatchConfig) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutSeconds) * time.Second
}

// IngestionConfig selects and configures the downstream ingestion sink.
type IngestionConfig struct {
	Driver         string `yaml:"driver"` // http, s3, sqs, dynamodb, redis
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	S3Bucket      string `yaml:"s3_bucket"`
	S3Prefix      string `yaml:"s3_prefix"`
	SQSQueueURL   string `yaml:"sqs_queue_url"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	RedisURL      string `yaml:"redis_url"`
	RedisStream   string `yaml:"redis_stream"`

	AWSRegion    string `yaml:"aws_region"`
	AWSAccessKey string `yaml:"aws_access_key"`
	AWSSecretKey string `yaml:"aws_secret_key"`
	AWSEndpoint  string `yaml:"aws_endpoint"` // LocalStack and friends
}

// Timeout returns the configured per-call timeout as a duration
func (c IngestionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoggingConfig holds structured logger settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on (default true).
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 5 << 20
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = 10
	}
	if cfg.Dispatch.GracePeriodMS == 0 {
		cfg.Dispatch.GracePeriodMS = 1
	}
	if cfg.Dispatch.DrainTimeoutSeconds == 0 {
		cfg.Dispatch.DrainTimeoutSeconds = 10
	}
	if cfg.Ingestion.Driver == "" {
		cfg.Ingestion.Driver = DriverHTTP
	}
	if cfg.Ingestion.Endpoint == "" {
		cfg.Ingestion.Endpoint = "https://dummy-s3-location.com/ingest"
	}
	if cfg.Ingestion.TimeoutSeconds == 0 {
		cfg.Ingestion.TimeoutSeconds = 5
	}
	if cfg.Ingestion.S3Prefix == "" {
		cfg.Ingestion.S3Prefix = "onboarding"
	}
	if cfg.Ingestion.RedisStream == "" {
		cfg.Ingestion.RedisStream = "onboarding:ingest"
	}
	if cfg.Ingestion.AWSRegion == "" {
		cfg.Ingestion.AWSRegion = "us-east-1"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks the driver specific settings.
func (cfg *Config) Validate() error {
	in := cfg.Ingestion
	switch strings.ToLower(in.Driver) {
	case DriverHTTP:
		if in.Endpoint == "" {
			return fmt.Errorf("ingestion.endpoint is required for driver %q", in.Driver)
		}
	case DriverS3:
		if in.S3Bucket == "" {
			return fmt.Errorf("ingestion.s3_bucket is required for driver %q", in.Driver)
		}
	case DriverSQS:
		if in.SQSQueueURL == "" {
			return fmt.Errorf("ingestion.sqs_queue_url is required for driver %q", in.Driver)
		}
	case DriverDynamoDB:
		if in.DynamoDBTable == "" {
			return fmt.Errorf("ingestion.dynamodb_table is required for driver %q", in.Driver)
		}
	case DriverRedis:
		if in.RedisURL == "" {
			return fmt.Errorf("ingestion.redis_url is required for driver %q", in.Driver)
		}
	default:
		return fmt.Errorf("unknown ingestion driver %q", in.Driver)
	}
	if cfg.Dispatch.GracePeriodMS < 0 {
		return fmt.Errorf("dispatch.grace_period_ms must not be negative")
	}
	return nil
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars.
// A missing config file is not an error: defaults plus environment apply.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("INGESTION_DRIVER"); v != "" {
		cfg.Ingestion.Driver = v
	}
	if v := os.Getenv("INGESTION_ENDPOINT"); v != "" {
		cfg.Ingestion.Endpoint = v
	}
	if v := os.Getenv("INGESTION_GRACE_PERIOD_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid INGESTION_GRACE_PERIOD_MS %q: %w", v, err)
		}
		cfg.Dispatch.GracePeriodMS = ms
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Ingestion.AWSRegion = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Ingestion.AWSAccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Ingestion.AWSSecretKey = v
	}
	if v := os.Getenv("AWS_ENDPOINT_URL"); v != "" {
		cfg.Ingestion.AWSEndpoint = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Ingestion.RedisURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}
