package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPDoer is the interface for executing HTTP requests.
// *http.Client satisfies it; tests substitute their own.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned when the ingestion endpoint answers with a
// non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ingestion endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("ingestion endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// maxErrorBody caps how much of an error response is kept for logging.
const maxErrorBody = 512

// HTTPSink POSTs the JSON envelope to an ingestion endpoint.
type HTTPSink struct {
	client   HTTPDoer
	endpoint string
}

// NewHTTPSink creates an HTTPSink. If client is nil a default http.Client
// with the given timeout is used.
func NewHTTPSink(client HTTPDoer, endpoint string, timeout time.Duration) *HTTPSink {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPSink{client: client, endpoint: endpoint}
}

// Name implements Sink.
func (s *HTTPSink) Name() string { return "http" }

// Send implements Sink.
func (s *HTTPSink) Send(ctx context.Context, env Envelope) (string, error) {
	body, err := env.Marshal()
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building ingestion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", env.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("posting to ingestion endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	// Drain for connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Status, nil
}
