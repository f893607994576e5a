// Package ingestion forwards validated onboarding records to the downstream
// ingestion store. A Forwarder wraps one Sink (HTTP endpoint, S3 bucket, SQS
// queue, DynamoDB table or Redis stream) and adds the per-call timeout,
// envelope ids and logging.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/onboarding-gateway/internal/onboarding"
	"github.com/ignite/onboarding-gateway/internal/pkg/logger"
)

// Client is the forwarding collaborator used by the dispatcher.
type Client interface {
	Forward(ctx context.Context, req onboarding.Request) (Result, error)
}

// Checker is implemented by sinks that can probe their backend for readiness.
type Checker interface {
	Check(ctx context.Context) error
}

// Sink writes one envelope to a backend and returns a sink specific
// location (object key, message id, stream entry id, HTTP status).
type Sink interface {
	Name() string
	Send(ctx context.Context, env Envelope) (string, error)
}

// Envelope is what every sink stores: the record plus a generated id.
type Envelope struct {
	ID         string             `json:"id"`
	ReceivedAt time.Time          `json:"receivedAt"`
	Customer   onboarding.Request `json:"customer"`
}

// NewEnvelope wraps req with a fresh v4 id.
func NewEnvelope(req onboarding.Request, now time.Time) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		ReceivedAt: now.UTC(),
		Customer:   req,
	}
}

// Marshal returns the JSON encoding of the envelope.
func (e Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling envelope %s: %w", e.ID, err)
	}
	return data, nil
}

// Result describes a completed forwarding call.
type Result struct {
	ID       string `json:"id"`
	Sink     string `json:"sink"`
	Location string `json:"location,omitempty"`
}

// Forwarder implements Client on top of a Sink.
type Forwarder struct {
	sink    Sink
	timeout time.Duration
	log     *logger.Logger
	now     func() time.Time
}

// NewForwarder creates a Forwarder. A zero timeout disables the per-call
// deadline; callers then rely on the sink's own transport timeout.
func NewForwarder(sink Sink, timeout time.Duration, log *logger.Logger) *Forwarder {
	if log == nil {
		log = logger.Nop()
	}
	return &Forwarder{
		sink:    sink,
		timeout: timeout,
		log:     log,
		now:     time.Now,
	}
}

// Forward sends req to the sink. The call is bounded by the forwarder's
// timeout, independent of any caller-side grace period.
func (f *Forwarder) Forward(ctx context.Context, req onboarding.Request) (Result, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	env := NewEnvelope(req, f.now())
	log := logger.FromContext(ctx, f.log).With("ingestion_id", env.ID, "sink", f.sink.Name())

	log.Info("Sending data to ingestion service")
	location, err := f.sink.Send(ctx, env)
	if err != nil {
		log.Error("Failed to send data to ingestion service", "error", err)
		return Result{}, err
	}
	log.Info("Data sent to ingestion service successfully", "location", location)

	return Result{ID: env.ID, Sink: f.sink.Name(), Location: location}, nil
}

// Probe checks the sink's backend if the sink supports readiness checks.
// supported is false when the sink has no probe.
func (f *Forwarder) Probe(ctx context.Context) (supported bool, err error) {
	c, supported := f.sink.(Checker)
	if !supported {
		return false, nil
	}
	return true, c.Check(ctx)
}
