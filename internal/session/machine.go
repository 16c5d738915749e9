package session

import (
	"github.com/kingrea/semester-planner/internal/clarify"
	"github.com/kingrea/semester-planner/internal/gateway"
)

// Transition computes the next state for ev. It performs no I/O and never
// mutates s; any network work is returned as an Effect.
//
// User actions (file, answer, retry, reset, dismiss, invalid input) clear
// the previous error. Result events whose attempt does not match the
// outstanding one are stale and leave s unchanged.
func Transition(s State, ev Event) (State, Effect) {
	switch e := ev.(type) {
	case FileSubmitted:
		next := s.dismissed()
		if next.Phase != PhaseIntake {
			return next.rejected(ErrWrongPhase), nil
		}
		// A newer file supersedes an outstanding upload.
		next.FileName = e.File.Name
		next.Busy = true
		next.Attempt = e.Attempt
		return next, EffectStartSession{Attempt: e.Attempt, File: e.File}

	case IntakeSucceeded:
		if s.stale(PhaseIntake, e.Attempt) {
			return s, nil
		}
		next := s.settled()
		if e.Start.SessionID == "" {
			return next.failed(&gateway.Error{Op: "upload", Kind: gateway.ErrTransfer, Err: ErrNoSessionID}), nil
		}
		queue, err := clarify.BuildQueue(e.Start.Clarifications, s.Preferences)
		if err != nil {
			return next.failed(&gateway.Error{Op: "upload", Kind: gateway.ErrExtraction, Err: err}), nil
		}
		next.Phase = PhaseInterview
		next.SessionID = e.Start.SessionID
		next.Queue = queue
		next.Cursor = 0
		next.Answers = clarify.AnswerSet{}
		next.PendingFinalize = false
		return next, nil

	case IntakeFailed:
		if s.stale(PhaseIntake, e.Attempt) {
			return s, nil
		}
		return s.settled().failed(e.Err), nil

	case AnswerSubmitted:
		next := s.dismissed()
		if next.Phase != PhaseInterview {
			return next.rejected(ErrWrongPhase), nil
		}
		if next.Busy {
			return next.rejected(ErrBusy), nil
		}
		task, ok := next.Queue.At(next.Cursor)
		if !ok {
			return next.rejected(ErrWrongPhase), nil
		}
		answers := next.Answers.Clone()
		if err := answers.Record(task.Field, e.Text); err != nil {
			return next.rejected(err), nil
		}
		next.Answers = answers
		if next.Cursor+1 < next.Queue.Len() {
			next.Cursor++
			return next, nil
		}
		return next.finalize(e.Attempt)

	case FinalizeRequested:
		next := s.dismissed()
		if next.Phase != PhaseInterview || !next.PendingFinalize {
			return next.rejected(ErrNoRetry), nil
		}
		if next.Busy {
			return next.rejected(ErrBusy), nil
		}
		return next.finalize(e.Attempt)

	case FinalizeSucceeded:
		if s.stale(PhaseInterview, e.Attempt) {
			return s, nil
		}
		next := s.settled()
		next.Phase = PhaseResult
		next.PendingFinalize = false
		next.Result = &Result{Version: e.Version}
		return next, nil

	case FinalizeFailed:
		if s.stale(PhaseInterview, e.Attempt) {
			return s, nil
		}
		return s.settled().failed(e.Err), nil

	case ResetRequested:
		return NewState(s.Preferences), nil

	case ErrorDismissed:
		return s.dismissed(), nil

	case InvalidInput:
		return s.dismissed().rejected(e.Err), nil
	}
	return s, nil
}

// IsStale reports whether ev is a network result that s would discard.
func IsStale(s State, ev Event) bool {
	switch e := ev.(type) {
	case IntakeSucceeded:
		return s.stale(PhaseIntake, e.Attempt)
	case IntakeFailed:
		return s.stale(PhaseIntake, e.Attempt)
	case FinalizeSucceeded:
		return s.stale(PhaseInterview, e.Attempt)
	case FinalizeFailed:
		return s.stale(PhaseInterview, e.Attempt)
	}
	return false
}

func (s State) stale(phase Phase, attempt string) bool {
	return s.Phase != phase || !s.Busy || attempt == "" || attempt != s.Attempt
}

func (s State) finalize(attempt string) (State, Effect) {
	if !s.Answers.IsComplete(s.Queue) {
		return s.rejected(ErrIncomplete), nil
	}
	s.PendingFinalize = true
	s.Busy = true
	s.Attempt = attempt
	return s, EffectFinalize{
		Attempt:   attempt,
		SessionID: s.SessionID,
		Answers:   s.Answers.Payload(),
	}
}

func (s State) settled() State {
	s.Busy = false
	s.Attempt = ""
	return s
}

func (s State) dismissed() State {
	s.Err = nil
	s.Message = ""
	return s
}

func (s State) failed(err error) State {
	s.Err = err
	s.Message = Message(err)
	return s
}

func (s State) rejected(err error) State {
	return s.failed(invalid(err))
}
