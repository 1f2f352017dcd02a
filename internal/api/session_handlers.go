package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/happiness-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/scoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/security"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/session"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/survey"
)

type sessionView struct {
	ID              string             `json:"id"`
	CurrentQuestion int                `json:"current_question"`
	TotalQuestions  int                `json:"total_questions"`
	Progress        int                `json:"progress"`
	IsComplete      bool               `json:"is_complete"`
	Answers         scoring.Answers    `json:"answers"`
	Country         survey.CountryCode `json:"country"`
	Result          *scoring.Result    `json:"result,omitempty"`
	ResultID        string             `json:"result_id,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func viewOf(sess *session.Session) sessionView {
	return sessionView{
		ID:              sess.ID,
		CurrentQuestion: sess.CurrentQuestion,
		TotalQuestions:  sess.Total(),
		Progress:        sess.Progress(),
		IsComplete:      sess.IsComplete(),
		Answers:         sess.Answers,
		Country:         sess.Country,
		Result:          sess.Result,
		ResultID:        sess.ResultID,
		CreatedAt:       sess.CreatedAt,
		UpdatedAt:       sess.UpdatedAt,
	}
}

func (s *Server) handleStartSession(c *gin.Context) {
	sess, token, err := s.Sessions.Start(c.Request.Context())
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session": viewOf(sess),
		"token":   token,
	})
}

func (s *Server) handleGetSession(c *gin.Context) {
	id := c.GetString(sessionKey)
	sess, err := s.Sessions.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err, id)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

type answerRequest struct {
	Answer *scoring.Answer `json:"answer"`
}

func (s *Server) handleAnswer(c *gin.Context) {
	id := c.GetString(sessionKey)
	questionID := c.Param("questionID")
	if err := security.ValidateIdentifier("question id", questionID); err != nil {
		fail(c, err, id)
		return
	}

	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.NewValidationError("invalid request body", err.Error()), id)
		return
	}
	if req.Answer == nil {
		fail(c, apperrors.NewValidationError("answer is required"), id)
		return
	}

	sess, err := s.Sessions.Answer(c.Request.Context(), id, questionID, *req.Answer)
	if err != nil {
		fail(c, err, id)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

type countryRequest struct {
	Country survey.CountryCode `json:"country" binding:"required"`
}

func (s *Server) handleCountry(c *gin.Context) {
	id := c.GetString(sessionKey)

	var req countryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.NewValidationError("country is required", err.Error()), id)
		return
	}

	sess, err := s.Sessions.SelectCountry(c.Request.Context(), id, req.Country)
	if err != nil {
		fail(c, err, id)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

type positionRequest struct {
	CurrentQuestion *int `json:"current_question"`
}

func (s *Server) handlePosition(c *gin.Context) {
	id := c.GetString(sessionKey)

	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CurrentQuestion == nil {
		fail(c, apperrors.NewValidationError("current_question is required"), id)
		return
	}

	sess, err := s.Sessions.Seek(c.Request.Context(), id, *req.CurrentQuestion)
	if err != nil {
		fail(c, err, id)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

type completeRequest struct {
	Public bool `json:"public"`
}

// handleComplete scores the session. The body is optional; results are
// private unless public is set.
func (s *Server) handleComplete(c *gin.Context) {
	id := c.GetString(sessionKey)

	var req completeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, apperrors.NewValidationError("invalid request body", err.Error()), id)
			return
		}
	}

	sess, err := s.Sessions.Complete(c.Request.Context(), id, req.Public, c.ClientIP())
	if err != nil {
		fail(c, err, id)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":    sess.Result,
		"result_id": sess.ResultID,
		"session":   viewOf(sess),
	})
}

func (s *Server) handleReset(c *gin.Context) {
	id := c.GetString(sessionKey)
	sess, err := s.Sessions.Reset(c.Request.Context(), id)
	if err != nil {
		fail(c, err, id)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}
