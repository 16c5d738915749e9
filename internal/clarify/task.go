// Package clarify models the questions a session must resolve before a plan
// can be generated: the ordered clarification queue and the answers recorded
// against it.
package clarify

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyField reports a task without a field identifier.
	ErrEmptyField = errors.New("clarify: field is required")
	// ErrDuplicateField reports a field that appears twice in one queue.
	ErrDuplicateField = errors.New("clarify: duplicate field")
	// ErrEmptyAnswer reports an empty or whitespace-only answer.
	ErrEmptyAnswer = errors.New("clarify: answer must not be empty")
	// ErrEmptyQueue reports a queue with nothing to ask.
	ErrEmptyQueue = errors.New("clarify: queue has no tasks")
)

// Source tells where a task came from.
type Source int

const (
	SourceBackend    Source = iota // issued by the planner service for this document
	SourcePreference               // part of the fixed local preference tail
)

func (s Source) String() string {
	switch s {
	case SourceBackend:
		return "backend"
	case SourcePreference:
		return "preference"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Task is one open question. Field is the answer key.
type Task struct {
	Field    string `json:"field" yaml:"field"`
	Question string `json:"question" yaml:"question"`
	Context  string `json:"context,omitempty" yaml:"context,omitempty"`
	Source   Source `json:"-" yaml:"-"`
}

// Prompt renders the task the way the line-mode dialogue shows it.
func (t Task) Prompt() string {
	question := strings.TrimSpace(t.Question)
	if ctx := strings.TrimSpace(t.Context); ctx != "" {
		return fmt.Sprintf("[%s] %s", ctx, question)
	}
	return question
}
