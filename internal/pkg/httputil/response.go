package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
)

// MessageResponse is the envelope used by every onboarding endpoint.
type MessageResponse struct {
	Message string `json:"message"`
	Issues  any    `json:"issues,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// JSON writes a JSON response with the given status code. The data is
// serialized and Content-Type is set automatically.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Accepted writes a 202 response with the given data.
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, data)
}

// Message writes a MessageResponse carrying only a message.
func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, MessageResponse{Message: message})
}

// BadRequest writes a 400 response listing the given issues.
func BadRequest(w http.ResponseWriter, message string, issues any) {
	JSON(w, http.StatusBadRequest, MessageResponse{Message: message, Issues: issues})
}

// InternalError writes a 500 response with a public-safe message. The
// underlying error is never written to the client; callers log it.
func InternalError(w http.ResponseWriter, message string) {
	Message(w, http.StatusInternalServerError, message)
}

// ReadLimited wraps r.Body so that reading more than limit bytes fails.
// A limit <= 0 leaves the body untouched.
func ReadLimited(w http.ResponseWriter, r *http.Request, limit int64) {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
}

// IsTooLarge reports whether err came from a body that exceeded ReadLimited.
func IsTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
