package onboarding

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// fieldOrder is the order issues are reported in.
var fieldOrder = []string{"firstName", "lastName", "email"}

// Validator checks raw onboarding payloads. It has no mutable state after
// construction and is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator whose reported field names are the JSON
// names of Request.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate decodes a JSON body and checks it. An empty body is treated as
// an empty object so every required field is reported.
func (v *Validator) Validate(raw []byte) Outcome {
	if len(bytes.TrimSpace(raw)) == 0 {
		return v.ValidatePayload(map[string]any{})
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return Outcome{issues: []Issue{{
			Field:   "",
			Message: "request body must be a JSON object",
			Code:    CodeInvalidBody,
		}}}
	}
	return v.ValidatePayload(payload)
}

// ValidatePayload checks an already decoded payload. Every violation is
// collected; the check never stops at the first bad field.
func (v *Validator) ValidatePayload(payload map[string]any) Outcome {
	byField := make(map[string]Issue, len(fieldOrder))
	values := make(map[string]string, len(fieldOrder))

	for _, field := range fieldOrder {
		raw, present := payload[field]
		if !present || raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			byField[field] = Issue{
				Field:   field,
				Message: fmt.Sprintf("%s must be a string", field),
				Code:    CodeInvalidType,
			}
			continue
		}
		values[field] = s
	}

	req := Request{
		FirstName: values["firstName"],
		LastName:  values["lastName"],
		Email:     values["email"],
	}

	if err := v.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			// Only InvalidValidationError is left, which means a programming error.
			panic(err)
		}
		for _, fe := range verrs {
			field := fe.Field()
			if _, typed := byField[field]; typed {
				continue
			}
			byField[field] = issueFor(field, fe.Tag())
		}
	}

	if len(byField) == 0 {
		return Outcome{request: req}
	}

	issues := make([]Issue, 0, len(byField))
	for _, field := range fieldOrder {
		if is, ok := byField[field]; ok {
			issues = append(issues, is)
		}
	}
	return Outcome{issues: issues}
}

func issueFor(field, tag string) Issue {
	switch tag {
	case "email":
		return Issue{Field: field, Message: field + " must be a valid email address", Code: CodeInvalidFormat}
	case "required":
		return Issue{Field: field, Message: field + " is required", Code: CodeMissingField}
	default:
		return Issue{Field: field, Message: fmt.Sprintf("%s failed %q", field, tag), Code: CodeInvalidFormat}
	}
}
