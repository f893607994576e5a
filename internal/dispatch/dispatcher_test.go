package dispatch

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ignite/onboarding-gateway/internal/ingestion"
	"github.com/ignite/onboarding-gateway/internal/onboarding"
	"github.com/ignite/onboarding-gateway/internal/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jane = onboarding.Request{FirstName: "Jane", LastName: "Doe", Email: "jane.doe@example.com"}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// stubClient forwards by calling fn.
type stubClient struct {
	fn func(ctx context.Context, req onboarding.Request) (ingestion.Result, error)
}

func (s stubClient) Forward(ctx context.Context, req onboarding.Request) (ingestion.Result, error) {
	return s.fn(ctx, req)
}

func succeed(id string) stubClient {
	return stubClient{fn: func(context.Context, onboarding.Request) (ingestion.Result, error) {
		return ingestion.Result{ID: id, Sink: "stub"}, nil
	}}
}

func fail(err error) stubClient {
	return stubClient{fn: func(context.Context, onboarding.Request) (ingestion.Result, error) {
		return ingestion.Result{}, err
	}}
}

// gated blocks every forward until release is closed, then returns err.
func gated(release <-chan struct{}, err error, seen chan<- error) stubClient {
	return stubClient{fn: func(ctx context.Context, _ onboarding.Request) (ingestion.Result, error) {
		<-release
		if seen != nil {
			seen <- ctx.Err()
		}
		if err != nil {
			return ingestion.Result{}, err
		}
		return ingestion.Result{ID: "late", Sink: "stub"}, nil
	}}
}

func drain(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Drain(ctx))
}

func TestDispatchCompletesWithinGrace(t *testing.T) {
	m := NewMetrics(nil)
	d := New(succeed("abc"), time.Second, WithMetrics(m))

	dec := d.Dispatch(context.Background(), jane)

	assert.Equal(t, Completed, dec.Outcome)
	assert.Equal(t, "abc", dec.Result.ID)
	assert.NoError(t, dec.Err)
	assert.Equal(t, int64(0), d.Detached())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatched.WithLabelValues("completed")))
}

func TestDispatchFailsWithinGrace(t *testing.T) {
	m := NewMetrics(nil)
	d := New(fail(errors.New("network error")), time.Second, WithMetrics(m))

	dec := d.Dispatch(context.Background(), jane)

	assert.Equal(t, Failed, dec.Outcome)
	assert.EqualError(t, dec.Err, "network error")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatched.WithLabelValues("failed")))
}

func TestDispatchAcceptsAndFinishesDetached(t *testing.T) {
	var out syncBuffer
	m := NewMetrics(nil)
	release := make(chan struct{})
	d := New(gated(release, nil, nil), 10*time.Millisecond, WithLogger(logger.New(&out)), WithMetrics(m))

	dec := d.Dispatch(context.Background(), jane)

	require.Equal(t, Accepted, dec.Outcome)
	assert.Equal(t, int64(1), d.Detached())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.detachedGauge))
	assert.Contains(t, out.String(), "Ingestion is taking longer than expected")
	assert.NotContains(t, out.String(), "Background ingestion")

	close(release)
	drain(t, d)

	assert.Equal(t, int64(0), d.Detached())
	assert.Contains(t, out.String(), "Background ingestion completed successfully")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.detachedGauge))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.detached.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatched.WithLabelValues("accepted")))
}

func TestDetachedFailureIsLoggedOnly(t *testing.T) {
	var out syncBuffer
	m := NewMetrics(nil)
	release := make(chan struct{})
	d := New(gated(release, errors.New("remote said no"), nil), 10*time.Millisecond,
		WithLogger(logger.New(&out)), WithMetrics(m))

	dec := d.Dispatch(context.Background(), jane)
	require.Equal(t, Accepted, dec.Outcome)
	assert.NoError(t, dec.Err)

	close(release)
	drain(t, d)

	logs := out.String()
	assert.Contains(t, logs, "Background ingestion failed")
	assert.Contains(t, logs, "remote said no")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.detached.WithLabelValues("failed")))
}

func TestDetachedCallSurvivesRequestCancellation(t *testing.T) {
	release := make(chan struct{})
	seen := make(chan error, 1)
	d := New(gated(release, nil, seen), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	dec := d.Dispatch(ctx, jane)
	require.Equal(t, Accepted, dec.Outcome)

	// The HTTP request is over; its context goes away.
	cancel()
	close(release)

	assert.NoError(t, <-seen)
	drain(t, d)
}

func TestDispatchUsesContextLogger(t *testing.T) {
	var out syncBuffer
	release := make(chan struct{})
	d := New(gated(release, nil, nil), 10*time.Millisecond, WithLogger(logger.Nop()))

	ctx := logger.NewContext(context.Background(), logger.New(&out).With("request_id", "req-42"))
	require.Equal(t, Accepted, d.Dispatch(ctx, jane).Outcome)
	close(release)
	drain(t, d)

	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		assert.Contains(t, line, `"request_id":"req-42"`)
	}
}

func TestDrainTimesOut(t *testing.T) {
	release := make(chan struct{})
	d := New(gated(release, nil, nil), time.Millisecond)
	require.Equal(t, Accepted, d.Dispatch(context.Background(), jane).Outcome)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Drain(ctx)
	assert.ErrorIs(t, err, ErrDrainTimeout)

	close(release)
	drain(t, d)
}

func TestDispatchRecoversPanickingClient(t *testing.T) {
	d := New(stubClient{fn: func(context.Context, onboarding.Request) (ingestion.Result, error) {
		panic("boom")
	}}, time.Second)

	dec := d.Dispatch(context.Background(), jane)

	assert.Equal(t, Failed, dec.Outcome)
	assert.ErrorContains(t, dec.Err, "boom")
}

func TestDispatchConcurrentRequestsAreIndependent(t *testing.T) {
	release := make(chan struct{})
	slow := gated(release, nil, nil)
	d := New(stubClient{fn: func(ctx context.Context, req onboarding.Request) (ingestion.Result, error) {
		if req.FirstName == "slow" {
			return slow.Forward(ctx, req)
		}
		return ingestion.Result{ID: req.FirstName}, nil
	}}, 50*time.Millisecond)

	const n = 20
	decisions := make([]Decision, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := jane
			if i%2 == 0 {
				req.FirstName = "slow"
			}
			decisions[i] = d.Dispatch(context.Background(), req)
		}(i)
	}
	wg.Wait()

	for i, dec := range decisions {
		if i%2 == 0 {
			assert.Equal(t, Accepted, dec.Outcome, i)
		} else {
			assert.Equal(t, Completed, dec.Outcome, i)
		}
	}
	assert.Equal(t, int64(n/2), d.Detached())

	close(release)
	drain(t, d)
	assert.Equal(t, int64(0), d.Detached())
}

func TestMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.observeOutcome(Completed)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "onboarding_dispatch_total")
	assert.Contains(t, names, "onboarding_detached_inflight")

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.observeOutcome(Failed) })
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}
