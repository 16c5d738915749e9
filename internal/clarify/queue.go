package clarify

import (
	"fmt"
)

// Queue is the fixed, ordered list of tasks for one session. It has no
// mutators; the zero value is an empty queue.
type Queue struct {
	tasks []Task
}

// BuildQueue concatenates the backend clarifications (in the order
// received, fields used verbatim) with the preference tail.
func BuildQueue(dynamic []Task, prefs PreferenceSet) (Queue, error) {
	tail := prefs.tasks()
	tasks := make([]Task, 0, len(dynamic)+len(tail))
	for _, t := range dynamic {
		t.Source = SourceBackend
		tasks = append(tasks, t)
	}
	tasks = append(tasks, tail...)
	if len(tasks) == 0 {
		return Queue{}, ErrEmptyQueue
	}

	seen := make(map[string]struct{}, len(tasks))
	for i, t := range tasks {
		if t.Field == "" {
			return Queue{}, fmt.Errorf("task %d: %w", i, ErrEmptyField)
		}
		if _, ok := seen[t.Field]; ok {
			return Queue{}, fmt.Errorf("task %d: %w %q", i, ErrDuplicateField, t.Field)
		}
		seen[t.Field] = struct{}{}
	}
	return Queue{tasks: tasks}, nil
}

// Len returns the number of tasks.
func (q Queue) Len() int { return len(q.tasks) }

// At returns the task at position i.
func (q Queue) At(i int) (Task, bool) {
	if i < 0 || i >= len(q.tasks) {
		return Task{}, false
	}
	return q.tasks[i], true
}

// Tasks returns a copy of the ordered tasks.
func (q Queue) Tasks() []Task {
	if len(q.tasks) == 0 {
		return nil
	}
	out := make([]Task, len(q.tasks))
	copy(out, q.tasks)
	return out
}

// Fields returns the answer keys in queue order.
func (q Queue) Fields() []string {
	out := make([]string, len(q.tasks))
	for i, t := range q.tasks {
		out[i] = t.Field
	}
	return out
}

// Contains reports whether field belongs to the queue.
func (q Queue) Contains(field string) bool {
	for _, t := range q.tasks {
		if t.Field == field {
			return true
		}
	}
	return false
}

// Counts splits the queue length by source.
func (q Queue) Counts() (backend, preference int) {
	for _, t := range q.tasks {
		if t.Source == SourceBackend {
			backend++
		} else {
			preference++
		}
	}
	return backend, preference
}
