// Package session tracks a respondent's progress through the survey.
package session

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/ZanzyTHEbar/happiness-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/scoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/survey"
)

// Session is the state of one survey run. It is not safe for concurrent
// mutation; the Service serializes access per request.
type Session struct {
	ID              string             `json:"id"`
	CurrentQuestion int                `json:"current_question"`
	Answers         scoring.Answers    `json:"answers"`
	Country         survey.CountryCode `json:"country"`
	Result          *scoring.Result    `json:"result,omitempty"`
	ResultID        string             `json:"result_id,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`

	catalog *survey.Catalog
}

// New creates an empty session over catalog c (nil selects the built-in one).
func New(c *survey.Catalog) *Session {
	if c == nil {
		c = survey.Default()
	}
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.New().String(),
		Answers:   scoring.Answers{},
		Country:   survey.DefaultCountry,
		CreatedAt: now,
		UpdatedAt: now,
		catalog:   c,
	}
}

// Bind attaches a catalog to a session decoded from a store.
func (s *Session) Bind(c *survey.Catalog) {
	if c == nil {
		c = survey.Default()
	}
	s.catalog = c
	if s.Answers == nil {
		s.Answers = scoring.Answers{}
	}
}

// Total is the number of questions in the survey.
func (s *Session) Total() int {
	return s.catalog.Len()
}

// SetCurrentQuestion moves the cursor. Total itself is allowed and marks the end.
func (s *Session) SetCurrentQuestion(i int) error {
	if i < 0 || i > s.Total() {
		return apperrors.NewValidationError(
			fmt.Sprintf("current question must be between 0 and %d", s.Total()),
			fmt.Sprintf("got %d", i),
		)
	}
	s.CurrentQuestion = i
	s.touch()
	return nil
}

// SetAnswer records an answer after checking it against the question.
// Changing an answer discards a previously computed result.
func (s *Session) SetAnswer(questionID string, answer scoring.Answer) error {
	q, ok := s.catalog.Question(questionID)
	if !ok {
		return apperrors.NewValidationError("unknown question", questionID)
	}

	if answer.IsMultiple() != (q.Type == survey.QuestionMultiple) {
		return apperrors.NewValidationError(
			fmt.Sprintf("question %s expects a %s choice answer", q.ID, q.Type),
		)
	}
	if !answer.IsMultiple() && answer.IsEmpty() {
		return apperrors.NewValidationError(fmt.Sprintf("question %s needs a value", q.ID))
	}

	seen := make(map[string]bool, len(answer.Values()))
	for _, v := range answer.Values() {
		if _, ok := q.Option(v); !ok {
			return apperrors.NewValidationError(
				fmt.Sprintf("%q is not an option of question %s", v, q.ID),
			)
		}
		if seen[v] {
			return apperrors.NewValidationError(
				fmt.Sprintf("option %q selected twice for question %s", v, q.ID),
			)
		}
		seen[v] = true
	}

	s.Answers[questionID] = answer
	s.Result = nil
	s.ResultID = ""
	s.touch()
	return nil
}

// SetCountry changes the country used for the economic coefficient.
func (s *Session) SetCountry(code survey.CountryCode) error {
	if !s.catalog.HasCountry(code) {
		return apperrors.NewValidationError("unknown country", string(code))
	}
	if code != s.Country {
		s.Country = code
		s.Result = nil
		s.ResultID = ""
	}
	s.touch()
	return nil
}

// Complete scores the current answers and keeps the result on the session.
func (s *Session) Complete(engine *scoring.Engine) scoring.Result {
	result := engine.Calculate(s.Answers, s.Country)
	s.Result = &result
	s.CurrentQuestion = s.Total()
	s.touch()
	return result
}

// Reset returns the session to its initial state, keeping its identity.
func (s *Session) Reset() {
	s.CurrentQuestion = 0
	s.Answers = scoring.Answers{}
	s.Country = survey.DefaultCountry
	s.Result = nil
	s.ResultID = ""
	s.touch()
}

// Progress is the cursor position as a rounded percentage.
func (s *Session) Progress() int {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(s.CurrentQuestion) / float64(total) * 100))
}

// IsComplete reports whether every question has an answer.
func (s *Session) IsComplete() bool {
	return len(s.Answers) == s.Total()
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}
