package session

import (
	"errors"
	"fmt"

	"github.com/kingrea/semester-planner/internal/clarify"
	"github.com/kingrea/semester-planner/internal/gateway"
	"github.com/kingrea/semester-planner/internal/intake"
)

var (
	// ErrValidation marks local input rejections. They never reach the network.
	ErrValidation = errors.New("validation failed")

	ErrBusy        = errors.New("session: a request is already in progress")
	ErrWrongPhase  = errors.New("session: action not available in this phase")
	ErrNoRetry     = errors.New("session: nothing to resubmit")
	ErrIncomplete  = errors.New("session: answers are incomplete")
	ErrSuperseded  = errors.New("session: response belongs to a superseded attempt")
	ErrNoSessionID = errors.New("session: service returned no session id")
)

// ValidationError is a local rejection with a user-facing reason.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %v", ErrValidation, e.Reason, e.Err)
}

// Unwrap exposes ErrValidation and the cause.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

func invalid(err error) *ValidationError {
	var v *ValidationError
	if errors.As(err, &v) {
		return v
	}
	return &ValidationError{Reason: reason(err), Err: err}
}

func reason(err error) string {
	switch {
	case errors.Is(err, clarify.ErrEmptyAnswer):
		return "Please enter an answer."
	case errors.Is(err, intake.ErrUnsupported):
		return "Unsupported file type."
	case errors.Is(err, intake.ErrEmpty):
		return "The selected file is empty."
	case errors.Is(err, intake.ErrTooLarge):
		return "The selected file is too large."
	case errors.Is(err, ErrBusy):
		return "Please wait for the current request to finish."
	case errors.Is(err, ErrNoRetry):
		return "There is nothing to resubmit."
	case errors.Is(err, ErrWrongPhase):
		return "That action is not available right now."
	default:
		return err.Error()
	}
}

// Message returns the text to display for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Reason
	}
	return gateway.Message(err)
}
