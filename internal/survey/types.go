package survey

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dimension is one of the six life aspects a question is scored under.
type Dimension string

const (
	DimensionEconomic  Dimension = "economic"
	DimensionSocial    Dimension = "social"
	DimensionHealth    Dimension = "health"
	DimensionAssets    Dimension = "assets"
	DimensionFamily    Dimension = "family"
	DimensionLifestyle Dimension = "lifestyle"
)

var allDimensions = []Dimension{
	DimensionEconomic,
	DimensionSocial,
	DimensionHealth,
	DimensionAssets,
	DimensionFamily,
	DimensionLifestyle,
}

// Dimensions returns every dimension in display order.
func Dimensions() []Dimension {
	return append([]Dimension(nil), allDimensions...)
}

// Valid reports whether d is one of the known dimensions.
func (d Dimension) Valid() bool {
	for _, known := range allDimensions {
		if d == known {
			return true
		}
	}
	return false
}

// UnmarshalYAML rejects unknown dimension tags.
func (d *Dimension) UnmarshalYAML(value *yaml.Node) error {
	candidate := Dimension(strings.TrimSpace(value.Value))
	if !candidate.Valid() {
		return fmt.Errorf("line %d: unknown dimension %q", value.Line, value.Value)
	}
	*d = candidate
	return nil
}

// QuestionType distinguishes single-choice from multi-select questions.
type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
)

// Valid reports whether t is a supported question type.
func (t QuestionType) Valid() bool {
	return t == QuestionSingle || t == QuestionMultiple
}

// CountryCode is an ISO-style country code used to pick a purchasing-power coefficient.
type CountryCode string

const (
	// DefaultCountry is the baseline country selected for new sessions.
	DefaultCountry CountryCode = "US"
	// DefaultCoefficient applies to any country missing from the coefficient table.
	DefaultCoefficient = 1.0
	// DefaultMaxScore caps multi-select questions that declare no max_score.
	DefaultMaxScore = 5.0
)

// Weight is a question's share of the composite score. In YAML it may be
// written as a plain number or as a fraction such as "0.35/3".
type Weight float64

// UnmarshalYAML parses a number or a "numerator/denominator" fraction.
func (w *Weight) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: weight must be a scalar", value.Line)
	}

	parsed, err := parseWeight(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*w = Weight(parsed)
	return nil
}

func parseWeight(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	num, den, isFraction := strings.Cut(raw, "/")
	if !isFraction {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid weight %q", raw)
		}
		return v, nil
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid weight numerator %q", num)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid weight denominator %q", den)
	}
	if d == 0 {
		return 0, fmt.Errorf("weight %q divides by zero", raw)
	}
	return n / d, nil
}

// Option is one selectable answer of a question.
type Option struct {
	Value    string  `yaml:"value" json:"value"`
	LabelKey string  `yaml:"label_key" json:"label_key"`
	Score    float64 `yaml:"score" json:"score"`
}

// Question is a survey item. Questions are immutable once the catalog is loaded.
type Question struct {
	ID             string       `yaml:"id" json:"id"`
	TitleKey       string       `yaml:"title_key" json:"title_key"`
	DescriptionKey string       `yaml:"description_key,omitempty" json:"description_key,omitempty"`
	Type           QuestionType `yaml:"type" json:"type"`
	Dimension      Dimension    `yaml:"dimension" json:"dimension"`
	Weight         Weight       `yaml:"weight" json:"weight"`
	MaxScore       *float64     `yaml:"max_score,omitempty" json:"max_score,omitempty"`
	Options        []Option     `yaml:"options" json:"options"`
}

// Option looks up an option by its value token.
func (q Question) Option(value string) (Option, bool) {
	for _, opt := range q.Options {
		if opt.Value == value {
			return opt, true
		}
	}
	return Option{}, false
}

// ScoreCap is the upper bound of a multi-select question's raw score.
func (q Question) ScoreCap() float64 {
	if q.MaxScore != nil {
		return *q.MaxScore
	}
	return DefaultMaxScore
}

// Country pairs a country code with its coefficient.
type Country struct {
	Code        CountryCode `json:"code"`
	Coefficient float64     `json:"coefficient"`
}
