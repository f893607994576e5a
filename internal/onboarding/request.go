// Package onboarding holds the customer-onboarding record and the validator
// that turns a raw request payload into one.
package onboarding

// Request is a validated customer-onboarding record. Values are only
// produced by Validate and are treated as immutable afterwards.
type Request struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
}

// Issue codes reported by the validator.
const (
	CodeMissingField  = "MISSING_FIELD"
	CodeInvalidFormat = "INVALID_FORMAT"
	CodeInvalidType   = "INVALID_TYPE"
	CodeInvalidBody   = "INVALID_BODY"
)

// Issue is one field violation.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Outcome is the result of validating a payload: either Valid with a
// Request, or invalid with at least one Issue.
type Outcome struct {
	request Request
	issues  []Issue
}

// Valid reports whether the payload passed validation.
func (o Outcome) Valid() bool { return len(o.issues) == 0 }

// Request returns the validated record. ok is false for an invalid outcome.
func (o Outcome) Request() (req Request, ok bool) {
	if !o.Valid() {
		return Request{}, false
	}
	return o.request, true
}

// Issues returns a copy of the ordered violation list.
func (o Outcome) Issues() []Issue {
	if len(o.issues) == 0 {
		return nil
	}
	return append([]Issue(nil), o.issues...)
}

// Fields returns the names of the offending fields in report order.
func (o Outcome) Fields() []string {
	out := make([]string, 0, len(o.issues))
	for _, is := range o.issues {
		out = append(out, is.Field)
	}
	return out
}
