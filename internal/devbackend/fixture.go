package devbackend

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Clarification is one question the service asks about an upload.
type Clarification struct {
	Type     string `yaml:"type,omitempty" json:"type,omitempty"`
	Field    string `yaml:"field" json:"field"`
	Question string `yaml:"question" json:"question"`
	Context  string `yaml:"context,omitempty" json:"context,omitempty"`
}

// Fixture is the canned extraction outcome returned for every upload.
type Fixture struct {
	Subject        string          `yaml:"subject" json:"name"`
	Clarifications []Clarification `yaml:"clarifications" json:"-"`
	// NumericFields must be answered with whole numbers.
	NumericFields []string `yaml:"numeric_fields,omitempty" json:"-"`
}

// DefaultFixture mirrors the gaps found in a syllabus with one unit and no
// credit or exam information.
func DefaultFixture() Fixture {
	return Fixture{
		Subject: "Sample Subject",
		Clarifications: []Clarification{
			{Type: "missing_info", Field: "credits", Question: "How many credits is the course 'Sample Subject' worth?"},
			{Type: "missing_info", Field: "exam_weightage", Question: "What is the exam weightage (Midterm vs Final %)? (e.g. 30/70)"},
			{Type: "missing_info", Field: "unit_1_hours", Context: "Unit 1: Introduction", Question: "How many hours should be allocated for Unit 1?"},
			{Type: "ambiguity", Field: "unit_1_importance", Context: "Unit 1", Question: "Is Unit 1 high priority (IMP) or low priority (LESS_IMP)?"},
		},
		NumericFields: []string{"credits", "unit_1_hours"},
	}
}

// LoadFixture reads a YAML fixture. An empty path yields DefaultFixture.
func LoadFixture(path string) (Fixture, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultFixture(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("devbackend: read fixture %s: %w", path, err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return Fixture{}, fmt.Errorf("devbackend: parse fixture %s: %w", path, err)
	}
	if err := fx.validate(); err != nil {
		return Fixture{}, fmt.Errorf("devbackend: fixture %s: %w", path, err)
	}
	return fx, nil
}

func (f Fixture) validate() error {
	seen := map[string]struct{}{}
	for i, c := range f.Clarifications {
		field := strings.TrimSpace(c.Field)
		if field == "" {
			return fmt.Errorf("clarifications[%d]: field is required", i)
		}
		if strings.TrimSpace(c.Question) == "" {
			return fmt.Errorf("clarifications[%d]: question is required", i)
		}
		if _, dup := seen[field]; dup {
			return fmt.Errorf("clarifications[%d]: duplicate field %q", i, field)
		}
		seen[field] = struct{}{}
	}
	return nil
}

func (f Fixture) numeric(field string) bool {
	for _, n := range f.NumericFields {
		if n == field {
			return true
		}
	}
	return false
}
