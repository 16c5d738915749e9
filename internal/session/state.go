// Package session drives one clarification session from document upload to
// the finalized plan version.
//
// The lifecycle is a pure state machine (Transition) wrapped by a Controller
// that performs the two network operations the machine asks for.
package session

import (
	"github.com/kingrea/semester-planner/internal/clarify"
	"github.com/kingrea/semester-planner/internal/gateway"
)

// Phase is the coarse position in the session lifecycle.
type Phase int

const (
	PhaseIntake Phase = iota
	PhaseInterview
	PhaseResult
)

func (p Phase) String() string {
	switch p {
	case PhaseIntake:
		return "intake"
	case PhaseInterview:
		return "interview"
	case PhaseResult:
		return "result"
	default:
		return "unknown"
	}
}

// Result is the outcome of a successful finalize.
type Result struct {
	Version string
}

// State is a value snapshot of a session. Transition never mutates the
// State it receives.
type State struct {
	Phase     Phase
	FileName  string
	SessionID string
	Queue     clarify.Queue
	Cursor    int
	Answers   clarify.AnswerSet
	Result    *Result

	// Busy is set while a network operation for Attempt is outstanding.
	Busy    bool
	Attempt string

	// Err and Message describe the last failure until the next user action.
	Err     error
	Message string

	// PendingFinalize marks an interview whose answers are complete but
	// whose finalize has not succeeded yet.
	PendingFinalize bool

	Preferences clarify.PreferenceSet
}

// NewState returns the initial Intake state using prefs as the static
// question tail.
func NewState(prefs clarify.PreferenceSet) State {
	return State{Phase: PhaseIntake, Preferences: prefs}
}

// Current returns the task at the cursor while interviewing.
func (s State) Current() (clarify.Task, bool) {
	if s.Phase != PhaseInterview {
		return clarify.Task{}, false
	}
	return s.Queue.At(s.Cursor)
}

// Version returns the finalized version, or "" before the Result phase.
func (s State) Version() string {
	if s.Result == nil {
		return ""
	}
	return s.Result.Version
}

// CanRetry reports whether a failed finalize can be resubmitted.
func (s State) CanRetry() bool {
	return s.Phase == PhaseInterview && s.PendingFinalize && !s.Busy
}

// Event is an input to Transition.
type Event interface {
	event()
}

// FileSubmitted starts (or supersedes) an upload.
type FileSubmitted struct {
	Attempt string
	File    gateway.File
}

// IntakeSucceeded carries the service's response to an upload.
type IntakeSucceeded struct {
	Attempt string
	Start   gateway.StartResult
}

// IntakeFailed carries an upload failure.
type IntakeFailed struct {
	Attempt string
	Err     error
}

// AnswerSubmitted answers the current task. Attempt is used for the
// finalize call when this answer completes the queue.
type AnswerSubmitted struct {
	Attempt string
	Text    string
}

// FinalizeRequested resubmits a finalize that failed.
type FinalizeRequested struct {
	Attempt string
}

// FinalizeSucceeded carries the generated version.
type FinalizeSucceeded struct {
	Attempt string
	Version string
}

// FinalizeFailed carries a finalize failure.
type FinalizeFailed struct {
	Attempt string
	Err     error
}

// ResetRequested discards the session and returns to Intake.
type ResetRequested struct{}

// ErrorDismissed clears the displayed error.
type ErrorDismissed struct{}

// InvalidInput reports a local rejection, such as an unreadable file.
type InvalidInput struct {
	Err error
}

func (FileSubmitted) event()     {}
func (IntakeSucceeded) event()   {}
func (IntakeFailed) event()      {}
func (AnswerSubmitted) event()   {}
func (FinalizeRequested) event() {}
func (FinalizeSucceeded) event() {}
func (FinalizeFailed) event()    {}
func (ResetRequested) event()    {}
func (ErrorDismissed) event()    {}
func (InvalidInput) event()      {}

// Effect is a side effect requested by Transition. A nil Effect means
// nothing to do.
type Effect interface {
	effect()
}

// EffectStartSession asks for File to be uploaded.
type EffectStartSession struct {
	Attempt string
	File    gateway.File
}

// EffectFinalize asks for Answers to be submitted for SessionID.
type EffectFinalize struct {
	Attempt   string
	SessionID string
	Answers   map[string]string
}

func (EffectStartSession) effect() {}
func (EffectFinalize) effect()     {}
