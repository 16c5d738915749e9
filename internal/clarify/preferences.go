package clarify

import (
	"fmt"
	"strings"
)

// DefaultPreferenceVersion identifies the built-in preference set.
const DefaultPreferenceVersion = 1

// PreferenceSet is the versioned list of generic questions appended after
// the document-specific clarifications of every session.
type PreferenceSet struct {
	Version   int    `yaml:"version"`
	Questions []Task `yaml:"questions"`
}

// DefaultPreferences returns the built-in preference questions.
func DefaultPreferences() PreferenceSet {
	return PreferenceSet{
		Version: DefaultPreferenceVersion,
		Questions: []Task{
			{Field: "difficulty", Question: "Is this subject difficult? (yes/no)", Source: SourcePreference},
			{Field: "revision", Question: "Do you want dedicated revision weeks? (yes/no)", Source: SourcePreference},
		},
	}
}

// Validate checks that every question has a field and prompt and that
// fields are unique within the set.
func (p PreferenceSet) Validate() error {
	if p.Version < 1 {
		return fmt.Errorf("clarify: preference version must be >= 1")
	}
	seen := make(map[string]struct{}, len(p.Questions))
	for i, q := range p.Questions {
		field := strings.TrimSpace(q.Field)
		if field == "" {
			return fmt.Errorf("preferences[%d]: %w", i, ErrEmptyField)
		}
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("preferences[%d]: question is required", i)
		}
		if _, ok := seen[field]; ok {
			return fmt.Errorf("preferences[%d]: %w %q", i, ErrDuplicateField, field)
		}
		seen[field] = struct{}{}
	}
	return nil
}

func (p PreferenceSet) tasks() []Task {
	out := make([]Task, len(p.Questions))
	for i, q := range p.Questions {
		q.Field = strings.TrimSpace(q.Field)
		q.Source = SourcePreference
		out[i] = q
	}
	return out
}
