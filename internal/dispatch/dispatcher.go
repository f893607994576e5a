// Package dispatch bounds how long an onboarding request waits for
// ingestion.
//
// Each request races its forwarding call against a grace-period timer. If
// the call resolves first the caller learns the real result; if the timer
// fires first the caller is told the request was accepted and the call
// keeps running detached. A detached call is never cancelled by the
// dispatcher; it runs to completion and its outcome only reaches the log
// and metrics.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/onboarding-gateway/internal/ingestion"
	"github.com/ignite/onboarding-gateway/internal/onboarding"
	"github.com/ignite/onboarding-gateway/internal/pkg/logger"
)

// Outcome is the response class chosen by the race.
type Outcome int

const (
	// Completed means forwarding succeeded within the grace period.
	Completed Outcome = iota
	// Failed means forwarding failed within the grace period.
	Failed
	// Accepted means the grace period ran out and forwarding continues detached.
	Accepted
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Accepted:
		return "accepted"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Decision is what the HTTP boundary needs to answer the caller.
type Decision struct {
	Outcome Outcome
	Result  ingestion.Result // set for Completed
	Err     error            // set for Failed; never shown to the caller
}

// forwardResult is the single value a forwarding task resolves to.
type forwardResult struct {
	result ingestion.Result
	err    error
}

// Dispatcher runs the bounded wait. It holds no per-request state and is
// safe for concurrent use.
type Dispatcher struct {
	client  ingestion.Client
	grace   time.Duration
	log     *logger.Logger
	metrics *Metrics

	detached sync.WaitGroup
	inflight atomic.Int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the fallback logger used when the request context
// carries none.
func WithLogger(l *logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New creates a Dispatcher that waits at most grace for client.
func New(client ingestion.Client, grace time.Duration, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client: client,
		grace:  grace,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GracePeriod returns the configured wait.
func (d *Dispatcher) GracePeriod() time.Duration { return d.grace }

// Dispatch forwards req and waits at most the grace period for the result.
//
// The forwarding call gets a context that keeps ctx's values but not its
// cancellation, so the end of the HTTP request does not abort it; it is
// bounded only by the ingestion client's own timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, req onboarding.Request) Decision {
	log := logger.FromContext(ctx, d.log)
	task := d.start(context.WithoutCancel(ctx), req)

	timer := time.NewTimer(d.grace)
	defer timer.Stop()

	select {
	case res := <-task:
		if res.err != nil {
			d.metrics.observeOutcome(Failed)
			return Decision{Outcome: Failed, Err: res.err}
		}
		d.metrics.observeOutcome(Completed)
		return Decision{Outcome: Completed, Result: res.result}

	case <-timer.C:
		log.Info("Ingestion is taking longer than expected; returning 202 Accepted",
			"grace_period", d.grace.String())
		d.detach(task, log)
		d.metrics.observeOutcome(Accepted)
		return Decision{Outcome: Accepted}
	}
}

// start runs the forwarding call in its own goroutine. The returned
// channel receives exactly one value.
func (d *Dispatcher) start(ctx context.Context, req onboarding.Request) <-chan forwardResult {
	done := make(chan forwardResult, 1)
	go func() {
		began := time.Now()
		defer func() {
			if p := recover(); p != nil {
				done <- forwardResult{err: fmt.Errorf("forwarding panicked: %v", p)}
			}
		}()
		result, err := d.client.Forward(ctx, req)
		d.metrics.observeForward(time.Since(began))
		done <- forwardResult{result: result, err: err}
	}()
	return done
}

// detach hands an unresolved task to a watcher that only logs its outcome.
func (d *Dispatcher) detach(task <-chan forwardResult, log *logger.Logger) {
	d.detached.Add(1)
	d.inflight.Add(1)
	d.metrics.detachStarted()

	go func() {
		defer d.detached.Done()
		res := <-task
		d.inflight.Add(-1)
		d.metrics.detachFinished(res.err)

		if res.err != nil {
			log.Error("Background ingestion failed", "error", res.err)
			return
		}
		log.Info("Background ingestion completed successfully", "ingestion_id", res.result.ID)
	}()
}

// Detached returns the number of forwarding calls still running after
// their request was answered.
func (d *Dispatcher) Detached() int64 { return d.inflight.Load() }

// ErrDrainTimeout is returned by Drain when ctx ends before every detached
// call has finished.
var ErrDrainTimeout = errors.New("dispatch: detached forwarding calls still running")

// Drain blocks until every detached forwarding call has resolved or ctx is
// done. It must not race with new Dispatch calls; call it after the HTTP
// server has stopped accepting requests.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.detached.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w (%d left): %v", ErrDrainTimeout, d.Detached(), ctx.Err())
	}
}
