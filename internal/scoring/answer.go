package scoring

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Answer is the response to one question: either a single value or a list
// of selected values. The zero Answer is an empty single value.
type Answer struct {
	values []string
	multi  bool
}

// Single builds a single-choice answer.
func Single(value string) Answer {
	return Answer{values: []string{value}}
}

// Multiple builds a multi-select answer. An empty selection is still an answer.
func Multiple(values ...string) Answer {
	return Answer{values: append([]string{}, values...), multi: true}
}

// IsMultiple reports whether the answer was given as a list.
func (a Answer) IsMultiple() bool { return a.multi }

// Value returns the single value, or "" for list answers.
func (a Answer) Value() string {
	if a.multi || len(a.values) == 0 {
		return ""
	}
	return a.values[0]
}

// Values returns the selected values. A single answer yields a one element slice.
func (a Answer) Values() []string {
	return append([]string(nil), a.values...)
}

// IsEmpty reports an unanswered single value. Empty lists are not empty answers.
func (a Answer) IsEmpty() bool {
	return !a.multi && a.Value() == ""
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.multi {
		return json.Marshal(a.values)
	}
	return json.Marshal(a.Value())
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = Single(single)
		return nil
	}

	var multi []string
	if err := json.Unmarshal(data, &multi); err != nil {
		return fmt.Errorf("answer must be a string or a list of strings")
	}
	*a = Multiple(multi...)
	return nil
}

func (a Answer) MarshalYAML() (interface{}, error) {
	if a.multi {
		return a.values, nil
	}
	return a.Value(), nil
}

func (a *Answer) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*a = Single(value.Value)
		return nil
	case yaml.SequenceNode:
		var multi []string
		if err := value.Decode(&multi); err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*a = Multiple(multi...)
		return nil
	default:
		return fmt.Errorf("line %d: answer must be a string or a list of strings", value.Line)
	}
}

// Answers maps question ids to answers. Only answered questions have keys.
type Answers map[string]Answer

