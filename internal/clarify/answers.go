package clarify

import (
	"strings"
)

// AnswerSet maps a task field to the user's answer. The zero value is
// ready to use.
type AnswerSet struct {
	values map[string]string
}

// Record stores answer under field, overwriting any previous value.
// Surrounding whitespace is trimmed; an empty result is rejected with
// ErrEmptyAnswer and nothing is stored.
func (a *AnswerSet) Record(field, answer string) error {
	if field == "" {
		return ErrEmptyField
	}
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return ErrEmptyAnswer
	}
	if a.values == nil {
		a.values = map[string]string{}
	}
	a.values[field] = trimmed
	return nil
}

// Get returns the answer recorded for field.
func (a AnswerSet) Get(field string) (string, bool) {
	v, ok := a.values[field]
	return v, ok
}

// Len returns the number of recorded answers.
func (a AnswerSet) Len() int { return len(a.values) }

// IsComplete reports whether every field of q has an answer and no answer
// exists outside q.
func (a AnswerSet) IsComplete(q Queue) bool {
	if len(a.values) != q.Len() {
		return false
	}
	return len(a.Missing(q)) == 0
}

// Missing lists the queue fields that have no answer yet, in queue order.
func (a AnswerSet) Missing(q Queue) []string {
	var missing []string
	for _, t := range q.tasks {
		if _, ok := a.values[t.Field]; !ok {
			missing = append(missing, t.Field)
		}
	}
	return missing
}

// Payload returns a snapshot suitable for transmission. Values are the
// trimmed text Record stored, not the raw input. Callers may modify the
// returned map freely.
func (a AnswerSet) Payload() map[string]string {
	out := make(map[string]string, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy.
func (a AnswerSet) Clone() AnswerSet {
	if a.values == nil {
		return AnswerSet{}
	}
	return AnswerSet{values: a.Payload()}
}

// Reset drops every recorded answer.
func (a *AnswerSet) Reset() {
	a.values = nil
}
