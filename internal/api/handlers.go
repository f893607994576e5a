package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/ignite/onboarding-gateway/internal/dispatch"
	"github.com/ignite/onboarding-gateway/internal/onboarding"
	"github.com/ignite/onboarding-gateway/internal/pkg/httputil"
	"github.com/ignite/onboarding-gateway/internal/pkg/logger"
)

// Public response messages.
const (
	msgSent          = "Data sent to ingestion service successfully"
	msgAccepted      = "Request accepted and is being processed"
	msgInvalidBody   = "Invalid request body"
	msgIngestFailed  = "Failed to send data to ingestion service"
	msgBodyTooLarge  = "Request body too large"
	defaultBodyLimit = 5 << 20
)

// Handlers contains the onboarding HTTP handlers
type Handlers struct {
	validator    *onboarding.Validator
	dispatcher   *dispatch.Dispatcher
	log          *logger.Logger
	maxBodyBytes int64
}

// NewHandlers creates a new Handlers instance. maxBodyBytes <= 0 selects
// the 5 MB default.
func NewHandlers(v *onboarding.Validator, d *dispatch.Dispatcher, log *logger.Logger, maxBodyBytes int64) *Handlers {
	if log == nil {
		log = logger.Nop()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultBodyLimit
	}
	return &Handlers{
		validator:    v,
		dispatcher:   d,
		log:          log,
		maxBodyBytes: maxBodyBytes,
	}
}

// HealthCheck reports that the process is serving.
//
//	GET /api/healthcheck
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
	logger.FromContext(r.Context(), h.log).Info("Health check endpoint hit successfully")
}

// OnboardCustomer validates the body and forwards it to ingestion,
// waiting at most the dispatcher's grace period.
//
//	POST /api/onboardCustomer
//
// 200 forwarded, 202 still forwarding, 400 invalid body, 413 body too
// large, 500 forwarding failed.
func (h *Handlers) OnboardCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx, h.log)
	log.Info("Received onboarding request")

	httputil.ReadLimited(w, r, h.maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		if httputil.IsTooLarge(err) {
			log.Error(msgBodyTooLarge, "limit_bytes", h.maxBodyBytes)
			httputil.Message(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		log.Error("Failed to read request body", "error", err)
		httputil.BadRequest(w, msgInvalidBody, []onboarding.Issue{{
			Message: "request body could not be read",
			Code:    onboarding.CodeInvalidBody,
		}})
		return
	}

	outcome := h.validator.Validate(body)
	req, ok := outcome.Request()
	if !ok {
		log.Error(msgInvalidBody, "fields", strings.Join(outcome.Fields(), ","))
		httputil.BadRequest(w, msgInvalidBody, outcome.Issues())
		return
	}

	decision := h.dispatcher.Dispatch(ctx, req)
	switch decision.Outcome {
	case dispatch.Completed:
		httputil.OK(w, httputil.MessageResponse{Message: msgSent, Result: decision.Result})
	case dispatch.Accepted:
		httputil.Accepted(w, httputil.MessageResponse{Message: msgAccepted})
	default:
		respondSafeError(w, log, http.StatusInternalServerError, decision.Err, msgIngestFailed)
	}
}
