// Package scoring turns survey answers into a happiness score.
package scoring

import (
	"math"

	"github.com/ZanzyTHEbar/happiness-o-meter/internal/survey"
)

// scale maps the 0-5 composite onto 0-100.
const scale = 20

// Contribution explains how one answered question moved its dimension.
type Contribution struct {
	QuestionID  string           `json:"question_id"`
	Dimension   survey.Dimension `json:"dimension"`
	RawScore    float64          `json:"raw_score"`
	Coefficient float64          `json:"coefficient"`
	Points      float64          `json:"points"`
}

// Result is the outcome of a scoring run.
type Result struct {
	TotalScore      int                      `json:"total_score"`
	DimensionScores map[survey.Dimension]int `json:"dimension_scores"`
	Level           Level                    `json:"level"`
	Contributions   []Contribution           `json:"contributions,omitempty"`
}

// Engine scores answers against a catalog. It holds no mutable state.
type Engine struct {
	catalog *survey.Catalog
}

// NewEngine creates an engine over c. A nil catalog selects the built-in one.
func NewEngine(c *survey.Catalog) *Engine {
	if c == nil {
		c = survey.Default()
	}
	return &Engine{catalog: c}
}

// Catalog returns the catalog the engine scores against.
func (e *Engine) Catalog() *survey.Catalog {
	return e.catalog
}

// Calculate scores answers for country. Missing answers contribute nothing,
// unknown question ids are ignored and an unknown country uses the default
// coefficient, so Calculate never fails.
func (e *Engine) Calculate(answers Answers, country survey.CountryCode) Result {
	coefficient := e.catalog.Coefficient(country)
	accumulators := make(map[survey.Dimension]float64)
	var contributions []Contribution

	for _, q := range e.catalog.Questions {
		answer, ok := answers[q.ID]
		if !ok || answer.IsEmpty() {
			continue
		}

		raw := rawScore(q, answer)
		applied := 1.0
		if q.Dimension == survey.DimensionEconomic {
			applied = coefficient
		}
		weighted := raw * applied * float64(q.Weight)

		accumulators[q.Dimension] += weighted
		contributions = append(contributions, Contribution{
			QuestionID:  q.ID,
			Dimension:   q.Dimension,
			RawScore:    raw,
			Coefficient: applied,
			Points:      weighted * scale,
		})
	}

	sum := 0.0
	dimensionScores := make(map[survey.Dimension]int, len(accumulators))
	for _, d := range survey.Dimensions() {
		acc, ok := accumulators[d]
		if !ok {
			continue
		}
		sum += acc
		dimensionScores[d] = int(math.Round(acc * scale))
	}

	total := sum * scale
	return Result{
		TotalScore:      int(math.Round(total)),
		DimensionScores: dimensionScores,
		Level:           HappinessLevel(total),
		Contributions:   contributions,
	}
}

func rawScore(q survey.Question, answer Answer) float64 {
	switch q.Type {
	case survey.QuestionSingle:
		if answer.IsMultiple() {
			return 0
		}
		if opt, ok := q.Option(answer.Value()); ok {
			return opt.Score
		}
		return 0
	case survey.QuestionMultiple:
		if !answer.IsMultiple() {
			return 0
		}
		total := 0.0
		for _, v := range answer.Values() {
			if opt, ok := q.Option(v); ok {
				total += opt.Score
			}
		}
		return math.Min(total, q.ScoreCap())
	default:
		return 0
	}
}

// CalculateHappinessScore scores answers against the built-in catalog.
func CalculateHappinessScore(answers Answers, country survey.CountryCode) Result {
	return NewEngine(survey.Default()).Calculate(answers, country)
}
