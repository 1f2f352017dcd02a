package survey

import (
	"fmt"
	"math"
	"strings"
)

// weightTolerance absorbs float error from fractional weights such as 0.35/3.
const weightTolerance = 1e-3

// ValidationError lists every problem found in a catalog.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid catalog: " + strings.Join(e.Problems, "; ")
}

// Validate checks the structural and weight invariants of the catalog.
// The weights of the questions in each dimension must add up to that
// dimension's table weight, and the table weights must add up to 1.
func (c *Catalog) Validate() error {
	var problems []string
	addf := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Questions) == 0 {
		addf("no questions defined")
	}

	seen := make(map[string]bool, len(c.Questions))
	questionWeights := make(map[Dimension]float64)
	for i, q := range c.Questions {
		ref := q.ID
		if ref == "" {
			ref = fmt.Sprintf("#%d", i)
			addf("question %s has no id", ref)
		} else if seen[q.ID] {
			addf("duplicate question id %q", q.ID)
		}
		seen[q.ID] = true

		if !q.Type.Valid() {
			addf("question %s has unknown type %q", ref, q.Type)
		}
		if !q.Dimension.Valid() {
			addf("question %s has unknown dimension %q", ref, q.Dimension)
		}
		if q.Weight < 0 {
			addf("question %s has negative weight", ref)
		}
		if q.MaxScore != nil {
			if q.Type != QuestionMultiple {
				addf("question %s sets max_score but is not multiple choice", ref)
			}
			if *q.MaxScore <= 0 {
				addf("question %s has non-positive max_score", ref)
			}
		}
		if len(q.Options) == 0 {
			addf("question %s has no options", ref)
		}

		values := make(map[string]bool, len(q.Options))
		for _, opt := range q.Options {
			if opt.Value == "" {
				addf("question %s has an option without value", ref)
				continue
			}
			if values[opt.Value] {
				addf("question %s has duplicate option %q", ref, opt.Value)
			}
			values[opt.Value] = true
			if opt.Score < 0 {
				addf("question %s option %q has negative score", ref, opt.Value)
			}
		}

		questionWeights[q.Dimension] += float64(q.Weight)
	}

	total := 0.0
	for _, d := range allDimensions {
		w, ok := c.DimensionWeights[d]
		if !ok {
			addf("dimension %s has no weight", d)
			continue
		}
		total += w
		if got := questionWeights[d]; math.Abs(got-w) > weightTolerance {
			addf("questions in dimension %s weigh %.4f, want %.4f", d, got, w)
		}
	}
	for d := range c.DimensionWeights {
		if !d.Valid() {
			addf("unknown dimension %q in weight table", d)
		}
	}
	if math.Abs(total-1.0) > weightTolerance {
		addf("dimension weights sum to %.4f, must sum to 1.0", total)
	}

	if len(c.CountryCoefficients) == 0 {
		addf("no country coefficients defined")
	}
	for code, coef := range c.CountryCoefficients {
		if code == "" {
			addf("empty country code in coefficient table")
		}
		if coef <= 0 {
			addf("country %s has non-positive coefficient %.4f", code, coef)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
