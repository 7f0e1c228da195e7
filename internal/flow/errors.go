package flow

import (
	"errors"
	"fmt"

	"fleet-assist/backend/internal/schema"
)

// Kind classifies why an invocation failed.
type Kind string

const (
	KindValidation      Kind = "ValidationError"
	KindModel           Kind = "ModelError"
	KindNoMedia         Kind = "NoMediaProduced"
	KindToolExecution   Kind = "ToolExecutionError"
	KindMalformedOutput Kind = "MalformedOutput"
	KindCancelled       Kind = "Cancelled"
)

// Message is the caller-facing summary for the kind.
func (k Kind) Message() string {
	switch k {
	case KindValidation:
		return "The request failed validation."
	case KindModel:
		return "The assistant could not complete the request."
	case KindNoMedia:
		return "The assistant finished without producing any media."
	case KindToolExecution:
		return "The assistant could not read the data it needed."
	case KindMalformedOutput:
		return "The assistant returned an answer in an unexpected format."
	case KindCancelled:
		return "The request was cancelled."
	default:
		return "The request failed."
	}
}

// Error is the only error type a flow returns.
type Error struct {
	Kind  Kind
	Flow  string
	Stage State
	// Violations lists every offending field for validation and output failures.
	Violations []schema.Violation
	Err        error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("flow %s: %s", e.Flow, e.Kind)
	}
	return fmt.Sprintf("flow %s: %s: %v", e.Flow, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a flow error, or "" for any other error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func newError(kind Kind, flow string, stage State, err error) *Error {
	e := &Error{Kind: kind, Flow: flow, Stage: stage, Err: err}
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		e.Violations = ve.Violations
	}
	return e
}
