// Package console runs a clarification session as a line-oriented dialogue
// on a plain terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/kingrea/semester-planner/internal/gateway"
	"github.com/kingrea/semester-planner/internal/session"
)

var (
	// ErrAbandoned is returned when the user declines to resubmit a failed
	// finalize.
	ErrAbandoned = errors.New("console: submission abandoned")
	// ErrInputClosed is returned when input ends before the interview does.
	ErrInputClosed = errors.New("console: input closed")
)

// Saver writes a finalized plan to disk.
type Saver interface {
	SaveTo(ctx context.Context, version, dir string) (string, error)
}

// Interviewer drives a session.Controller from line input.
type Interviewer struct {
	ctrl    *session.Controller
	in      *bufio.Scanner
	out     io.Writer
	saver   Saver
	saveDir string

	title   *color.Color
	prompt  *color.Color
	context *color.Color
	warn    *color.Color
	fail    *color.Color
	ok      *color.Color
}

// Option customizes an Interviewer.
type Option func(*Interviewer)

// WithSave downloads the plan into dir once the session completes.
func WithSave(saver Saver, dir string) Option {
	return func(iv *Interviewer) {
		iv.saver = saver
		iv.saveDir = dir
	}
}

// New returns an Interviewer reading answers from in and writing to out.
func New(ctrl *session.Controller, in io.Reader, out io.Writer, opts ...Option) *Interviewer {
	iv := &Interviewer{
		ctrl:    ctrl,
		in:      bufio.NewScanner(in),
		out:     out,
		title:   color.New(color.FgCyan, color.Bold),
		prompt:  color.New(color.Bold),
		context: color.New(color.FgHiBlack),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed),
		ok:      color.New(color.FgGreen),
	}
	for _, opt := range opts {
		opt(iv)
	}
	return iv
}

// Run uploads file, asks every question and reports the finalized version.
func (iv *Interviewer) Run(ctx context.Context, file gateway.File) error {
	iv.title.Fprintf(iv.out, "Uploading %s...\n", file.Name)
	if err := iv.ctrl.SubmitFile(ctx, file); err != nil {
		iv.fail.Fprintf(iv.out, "%s\n", session.Message(err))
		return err
	}

	st := iv.ctrl.State()
	backend, prefs := st.Queue.Counts()
	iv.title.Fprintf(iv.out, "%d questions (%d about the syllabus, %d preferences)\n\n", st.Queue.Len(), backend, prefs)

	for {
		st = iv.ctrl.State()
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case st.Phase == session.PhaseResult:
			return iv.finish(ctx, st)
		case st.Phase != session.PhaseInterview:
			return fmt.Errorf("console: session left the interview unexpectedly (%s)", st.Phase)
		case st.CanRetry():
			if err := iv.offerRetry(ctx, st); err != nil {
				return err
			}
		default:
			if err := iv.ask(ctx, st); err != nil {
				return err
			}
		}
	}
}

func (iv *Interviewer) ask(ctx context.Context, st session.State) error {
	task, ok := st.Current()
	if !ok {
		return fmt.Errorf("console: no question at position %d", st.Cursor)
	}
	fmt.Fprintf(iv.out, "(%s) ", st.Snapshot().Progress())
	if c := strings.TrimSpace(task.Context); c != "" {
		iv.context.Fprintf(iv.out, "[%s] ", c)
	}
	iv.prompt.Fprintln(iv.out, strings.TrimSpace(task.Question))
	line, err := iv.readLine()
	if err != nil {
		return err
	}
	err = iv.ctrl.SubmitAnswer(ctx, line)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrValidation):
		iv.warn.Fprintf(iv.out, "%s\n", session.Message(err))
		return nil
	default:
		// A failed finalize leaves the session retryable; Run offers it next.
		iv.fail.Fprintf(iv.out, "%s\n", session.Message(err))
		return nil
	}
}

func (iv *Interviewer) offerRetry(ctx context.Context, st session.State) error {
	fmt.Fprintf(iv.out, "Submit the %d answers again? [Y/n] ", st.Answers.Len())
	line, err := iv.readLine()
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
	default:
		return ErrAbandoned
	}
	if err := iv.ctrl.RetryFinalize(ctx); err != nil && !errors.Is(err, session.ErrValidation) {
		iv.fail.Fprintf(iv.out, "%s\n", session.Message(err))
	}
	return nil
}

func (iv *Interviewer) finish(ctx context.Context, st session.State) error {
	iv.ok.Fprintf(iv.out, "\nPlan version %s is ready.\n", st.Version())
	if url := iv.ctrl.DownloadURL(); url != "" {
		fmt.Fprintf(iv.out, "Download: %s\n", url)
	}
	if iv.saver == nil || strings.TrimSpace(iv.saveDir) == "" {
		return nil
	}
	path, err := iv.saver.SaveTo(ctx, st.Version(), iv.saveDir)
	if err != nil {
		iv.fail.Fprintf(iv.out, "Download failed: %s\n", gateway.Message(err))
		return err
	}
	iv.ok.Fprintf(iv.out, "Saved %s\n", path)
	return nil
}

func (iv *Interviewer) readLine() (string, error) {
	fmt.Fprint(iv.out, "> ")
	if !iv.in.Scan() {
		if err := iv.in.Err(); err != nil {
			return "", fmt.Errorf("console: read answer: %w", err)
		}
		return "", ErrInputClosed
	}
	return iv.in.Text(), nil
}
