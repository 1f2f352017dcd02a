package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/happiness-o-meter/internal/leaderboard"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/scoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/security"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/survey"
)

// rankedEntry is a leaderboard row as the public sees it. The result id is
// left out: it is the deletion credential of the respondent.
type rankedEntry struct {
	ID          string             `json:"id"`
	Period      leaderboard.Period `json:"period"`
	PeriodStart string             `json:"period_start"`
	PeriodEnd   string             `json:"period_end"`
	Rank        int                `json:"rank"`
	TotalScore  int                `json:"total_score"`
	Level       scoring.Level      `json:"level"`
	Country     survey.CountryCode `json:"country"`
	CreatedAt   time.Time          `json:"created_at"`
}

type leaderboardView struct {
	Entries     []rankedEntry      `json:"entries"`
	Total       int                `json:"total"`
	Period      leaderboard.Period `json:"period"`
	PeriodStart string             `json:"period_start"`
	PeriodEnd   string             `json:"period_end"`
}

func rankedEntryOf(e *leaderboard.LeaderboardEntry) rankedEntry {
	return rankedEntry{
		ID:          e.ID,
		Period:      e.Period,
		PeriodStart: e.PeriodStart,
		PeriodEnd:   e.PeriodEnd,
		Rank:        e.Rank,
		TotalScore:  e.TotalScore,
		Level:       e.Level,
		Country:     e.Country,
		CreatedAt:   e.CreatedAt,
	}
}

func leaderboardViewOf(r *leaderboard.LeaderboardResponse) leaderboardView {
	view := leaderboardView{
		Entries:     make([]rankedEntry, 0, len(r.Entries)),
		Total:       r.Total,
		Period:      r.Period,
		PeriodStart: r.PeriodStart,
		PeriodEnd:   r.PeriodEnd,
	}
	for i := range r.Entries {
		view.Entries = append(view.Entries, rankedEntryOf(&r.Entries[i]))
	}
	return view
}

func (s *Server) handleGetResult(c *gin.Context) {
	id := c.Param("id")
	if err := security.ValidateIdentifier("result id", id); err != nil {
		fail(c, err, id)
		return
	}

	result, err := s.Results.GetResult(c.Request.Context(), id)
	if err != nil {
		fail(c, err, id)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleDeleteResult removes a stored result. The random result id is the
// credential: it is returned on completion and never listed publicly.
func (s *Server) handleDeleteResult(c *gin.Context) {
	id := c.Param("id")
	if err := security.ValidateIdentifier("result id", id); err != nil {
		fail(c, err, id)
		return
	}

	if err := s.Privacy.DeleteResult(c.Request.Context(), id); err != nil {
		fail(c, err, id)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "result deleted",
		"id":      id,
	})
}

func (s *Server) handleCountryStats(c *gin.Context) {
	stats, err := s.Results.CountryStats(c.Request.Context())
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"countries": stats})
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	period, err := leaderboard.ParsePeriod(c.Param("period"))
	if err != nil {
		fail(c, err, c.Param("period"))
		return
	}

	limit := leaderboard.DefaultLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= leaderboard.MaxEntries {
			limit = l
		}
	}

	response, err := s.Leaderboard.GetLeaderboard(c.Request.Context(), period, limit)
	if err != nil {
		fail(c, err, string(period))
		return
	}
	c.JSON(http.StatusOK, leaderboardViewOf(response))
}

func (s *Server) handleRank(c *gin.Context) {
	id := c.Param("id")
	period, err := leaderboard.ParsePeriod(c.Param("period"))
	if err != nil {
		fail(c, err, c.Param("period"))
		return
	}
	if err := security.ValidateIdentifier("result id", id); err != nil {
		fail(c, err, id)
		return
	}

	entry, err := s.Leaderboard.GetResultRank(c.Request.Context(), id, period)
	if err != nil {
		fail(c, err, id)
		return
	}
	c.JSON(http.StatusOK, rankedEntryOf(entry))
}
