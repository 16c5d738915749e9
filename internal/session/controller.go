package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kingrea/semester-planner/internal/clarify"
	"github.com/kingrea/semester-planner/internal/gateway"
	"github.com/kingrea/semester-planner/internal/idgen"
	"github.com/kingrea/semester-planner/internal/intake"
	"github.com/kingrea/semester-planner/internal/logbook"
)

// Controller owns one session and runs the effects Transition requests.
// The lock is held only while a transition is applied, never across a
// network call.
type Controller struct {
	gw        gateway.Gateway
	logger    *zap.Logger
	attemptID idgen.Generator
	accept    []string
	observer  func(State)
	journal   *logbook.Logbook

	mu    sync.Mutex
	state State
}

// Option customizes a Controller.
type Option func(*Controller)

// WithPreferences replaces the static question tail.
func WithPreferences(prefs clarify.PreferenceSet) Option {
	return func(c *Controller) {
		c.state.Preferences = prefs
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l.Named("session")
		}
	}
}

// WithAttemptIDs overrides the correlation id generator.
func WithAttemptIDs(gen idgen.Generator) Option {
	return func(c *Controller) {
		if gen != nil {
			c.attemptID = gen
		}
	}
}

// WithAccept restricts SubmitFile to the given extensions.
func WithAccept(exts []string) Option {
	return func(c *Controller) {
		c.accept = append([]string(nil), exts...)
	}
}

// WithObserver registers fn to receive every state the controller applies.
// fn runs outside the controller lock.
func WithObserver(fn func(State)) Option {
	return func(c *Controller) {
		c.observer = fn
	}
}

// WithJournal records the session's milestones in book.
func WithJournal(book *logbook.Logbook) Option {
	return func(c *Controller) {
		c.journal = book
	}
}

// NewController returns a controller in the Intake phase.
func NewController(gw gateway.Gateway, opts ...Option) *Controller {
	c := &Controller{
		gw:        gw,
		logger:    zap.NewNop(),
		attemptID: idgen.Prefixed("att_", idgen.UUIDv7()),
		state:     NewState(clarify.DefaultPreferences()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Current returns the task awaiting an answer.
func (c *Controller) Current() (clarify.Task, bool) {
	return c.State().Current()
}

// DownloadURL references the finalized artifact, or "" before Result.
func (c *Controller) DownloadURL() string {
	version := c.State().Version()
	if version == "" {
		return ""
	}
	return c.gw.DownloadURL(version)
}

// NewAttempt returns a fresh correlation id.
func (c *Controller) NewAttempt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attemptID()
}

// Dispatch applies ev and returns the resulting state and effect. Callers
// that run effects themselves pass the effect to Run and dispatch its
// result.
func (c *Controller) Dispatch(ev Event) (State, Effect) {
	c.mu.Lock()
	prev := c.state
	if IsStale(prev, ev) {
		c.mu.Unlock()
		c.logger.Debug("stale response discarded", zap.String("event", eventName(ev)), zap.String("attempt", prev.Attempt))
		return c.State(), nil
	}
	next, eff := Transition(prev, ev)
	c.state = next
	out := c.snapshotLocked()
	observer := c.observer
	c.mu.Unlock()

	c.log(prev, out, ev)
	if observer != nil {
		observer(out)
	}
	return out, eff
}

// Run performs eff against the gateway and returns the result event. It
// returns nil for a nil effect.
func (c *Controller) Run(ctx context.Context, eff Effect) Event {
	switch e := eff.(type) {
	case EffectStartSession:
		c.logger.Info("starting session", zap.String("attempt", e.Attempt), zap.String("file", e.File.Name), zap.Int("bytes", len(e.File.Data)))
		start, err := c.gw.StartSession(ctx, e.File)
		if err != nil {
			return IntakeFailed{Attempt: e.Attempt, Err: err}
		}
		return IntakeSucceeded{Attempt: e.Attempt, Start: start}
	case EffectFinalize:
		c.logger.Info("finalizing session", zap.String("attempt", e.Attempt), zap.String("session_id", e.SessionID), zap.Int("answers", len(e.Answers)))
		res, err := c.gw.FinalizeSession(ctx, e.SessionID, e.Answers)
		if err != nil {
			return FinalizeFailed{Attempt: e.Attempt, Err: err}
		}
		return FinalizeSucceeded{Attempt: e.Attempt, Version: res.Version}
	}
	return nil
}

// CheckFile applies the accepted-type rules without touching the state.
func (c *Controller) CheckFile(file gateway.File) error {
	return intake.Check(file, c.accept)
}

// SubmitFile uploads file and waits for the interview to start. The
// returned error is the one surfaced on the state, if any.
func (c *Controller) SubmitFile(ctx context.Context, file gateway.File) error {
	if err := c.CheckFile(file); err != nil {
		st, _ := c.Dispatch(InvalidInput{Err: err})
		return st.Err
	}
	return c.step(ctx, FileSubmitted{Attempt: c.NewAttempt(), File: file})
}

// SubmitAnswer records text for the current task. When it is the last
// answer, the session is finalized before SubmitAnswer returns.
func (c *Controller) SubmitAnswer(ctx context.Context, text string) error {
	return c.step(ctx, AnswerSubmitted{Attempt: c.NewAttempt(), Text: text})
}

// RetryFinalize resubmits the unchanged answers after a failed finalize.
func (c *Controller) RetryFinalize(ctx context.Context) error {
	return c.step(ctx, FinalizeRequested{Attempt: c.NewAttempt()})
}

// Reset abandons the session and returns to Intake. Responses still in
// flight become stale.
func (c *Controller) Reset() {
	c.Dispatch(ResetRequested{})
}

// DismissError clears the displayed error.
func (c *Controller) DismissError() {
	c.Dispatch(ErrorDismissed{})
}

func (c *Controller) step(ctx context.Context, ev Event) error {
	st, eff := c.Dispatch(ev)
	if eff == nil {
		return st.Err
	}
	result := c.Run(ctx, eff)
	c.mu.Lock()
	stale := IsStale(c.state, result)
	c.mu.Unlock()
	if stale {
		c.logger.Debug("stale response discarded", zap.String("event", eventName(result)))
		return ErrSuperseded
	}
	st, _ = c.Dispatch(result)
	return st.Err
}

func (c *Controller) snapshotLocked() State {
	out := c.state
	out.Answers = c.state.Answers.Clone()
	if c.state.Result != nil {
		r := *c.state.Result
		out.Result = &r
	}
	return out
}

func (c *Controller) log(prev, next State, ev Event) {
	fields := []zap.Field{zap.String("event", eventName(ev)), zap.Object("session", next.Snapshot())}
	switch {
	case next.Err != nil && !errors.Is(prev.Err, next.Err):
		c.logger.Warn("session error", append(fields, zap.Error(next.Err))...)
	case prev.Phase != next.Phase:
		c.logger.Info("phase changed", append(fields, zap.Stringer("from", prev.Phase), zap.Stringer("to", next.Phase))...)
	default:
		c.logger.Debug("session updated", fields...)
	}
	c.journalEntry(prev, next, ev)
}

func (c *Controller) journalEntry(prev, next State, ev Event) {
	if c.journal == nil {
		return
	}
	if next.Err != nil && !errors.Is(prev.Err, next.Err) {
		if errors.Is(next.Err, ErrValidation) {
			c.journal.Warn("%s", next.Message)
		} else {
			c.journal.Error("%s", next.Message)
		}
		return
	}
	switch e := ev.(type) {
	case FileSubmitted:
		c.journal.Info("Uploading %s", e.File.Name)
	case IntakeSucceeded:
		backend, prefs := next.Queue.Counts()
		c.journal.Info("Session %s started: %d questions (%d from the syllabus, %d preferences)", next.SessionID, next.Queue.Len(), backend, prefs)
	case AnswerSubmitted, FinalizeRequested:
		if next.Busy && next.PendingFinalize {
			c.journal.Info("Submitting %d answers", next.Answers.Len())
		}
	case FinalizeSucceeded:
		c.journal.Info("Plan version %s is ready", next.Version())
	case ResetRequested:
		if prev.Phase != PhaseIntake || prev.Busy {
			c.journal.Info("Session cleared")
		}
	}
}

func eventName(ev Event) string {
	switch ev.(type) {
	case FileSubmitted:
		return "file_submitted"
	case IntakeSucceeded:
		return "intake_succeeded"
	case IntakeFailed:
		return "intake_failed"
	case AnswerSubmitted:
		return "answer_submitted"
	case FinalizeRequested:
		return "finalize_requested"
	case FinalizeSucceeded:
		return "finalize_succeeded"
	case FinalizeFailed:
		return "finalize_failed"
	case ResetRequested:
		return "reset_requested"
	case ErrorDismissed:
		return "error_dismissed"
	case InvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}
