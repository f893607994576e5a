package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/onboarding-gateway/internal/ingestion"
	"github.com/ignite/onboarding-gateway/internal/pkg/httputil"
	"github.com/ignite/onboarding-gateway/internal/pkg/logger"
)

// respondSafeError logs the full internal error and sends only publicMsg to
// the client. Upstream addresses, status bodies and stack details stay in
// the server log.
func respondSafeError(w http.ResponseWriter, log *logger.Logger, code int, internalErr error, publicMsg string) {
	if internalErr != nil {
		log.Error(publicMsg, "error", internalErr, "error_kind", errorKind(internalErr), "status", code)
	}
	httputil.Message(w, code, publicMsg)
}

// errorKind buckets a forwarding error for operators.
func errorKind(err error) string {
	if err == nil {
		return ""
	}

	var statusErr *ingestion.StatusError
	switch {
	case errors.As(err, &statusErr):
		return "upstream_status"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp"):
		return "unavailable"
	case strings.Contains(errStr, "timeout"):
		return "timeout"
	case strings.Contains(errStr, "panicked"):
		return "panic"
	}
	return "other"
}
