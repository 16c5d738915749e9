package gateway

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransfer covers network and transport failures. Retrying is safe.
	ErrTransfer = errors.New("transfer failed")
	// ErrExtraction means the service rejected the uploaded document.
	ErrExtraction = errors.New("extraction failed")
	// ErrRefinement means the service could not build a plan from the answers.
	ErrRefinement = errors.New("refinement failed")
)

const (
	defaultTransferMessage   = "Could not reach the planner service."
	defaultExtractionMessage = "Failed to process syllabus."
	defaultRefinementMessage = "Failed to generate plan."
)

// Error is returned by every Client operation.
type Error struct {
	Op     string // upload, refine, download, health
	Kind   error  // ErrTransfer, ErrExtraction or ErrRefinement
	Status int    // HTTP status, 0 when no response arrived
	Detail string // server-provided message, surfaced verbatim
	Err    error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gateway: %s: %v", e.Op, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Message returns the text shown to the user for err: the service detail
// when there is one, otherwise a default for the error kind.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var gerr *Error
	if errors.As(err, &gerr) && strings.TrimSpace(gerr.Detail) != "" {
		return gerr.Detail
	}
	switch {
	case errors.Is(err, ErrExtraction):
		return defaultExtractionMessage
	case errors.Is(err, ErrRefinement):
		return defaultRefinementMessage
	case errors.Is(err, ErrTransfer):
		return defaultTransferMessage
	}
	return err.Error()
}

func transferError(op string, err error) *Error {
	return &Error{Op: op, Kind: ErrTransfer, Err: err}
}
