package database

import (
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/happiness-o-meter/internal/scoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/survey"
)

// SurveyResult is a completed survey as stored
type SurveyResult struct {
	ID              string                   `json:"id"`
	SessionID       string                   `json:"session_id"`
	Country         survey.CountryCode       `json:"country"`
	TotalScore      int                      `json:"total_score"`
	Level           scoring.Level            `json:"level"`
	DimensionScores map[survey.Dimension]int `json:"dimension_scores"`
	IPHash          string                   `json:"-"`
	IsPublic        bool                     `json:"is_public"`
	CreatedAt       time.Time                `json:"created_at"`
}

// NewSurveyResult creates a result record with a generated ID
func NewSurveyResult(sessionID string, country survey.CountryCode, result scoring.Result, ipHash string, isPublic bool) *SurveyResult {
	return &SurveyResult{
		ID:              uuid.New().String(),
		SessionID:       sessionID,
		Country:         country,
		TotalScore:      result.TotalScore,
		Level:           result.Level,
		DimensionScores: result.DimensionScores,
		IPHash:          ipHash,
		IsPublic:        isPublic,
		CreatedAt:       time.Now().UTC(),
	}
}

// CountryStats aggregates stored results of one country
type CountryStats struct {
	Country      survey.CountryCode    `json:"country"`
	Count        int                   `json:"count"`
	AverageScore float64               `json:"average_score"`
	Levels       map[scoring.Level]int `json:"levels"`
}
