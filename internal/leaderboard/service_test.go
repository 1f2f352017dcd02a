package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/happiness-o-meter/internal/database"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/scoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/survey"
)

type fixture struct {
	service *Service
	repo    *database.Repository
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)

	service := NewServiceWithCache(db, NewLeaderboardCache(time.Minute))
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) // a Wednesday
	service.now = func() time.Time { return now }

	t.Cleanup(func() {
		service.Close()
		db.Close()
	})

	return &fixture{service: service, repo: database.NewRepository(db), now: now}
}

func (f *fixture) addResult(t *testing.T, score int, public bool, createdAt time.Time) *database.SurveyResult {
	t.Helper()
	r := database.NewSurveyResult("s", "US", scoring.Result{
		TotalScore:      score,
		Level:           scoring.HappinessLevel(float64(score)),
		DimensionScores: map[survey.Dimension]int{survey.DimensionSocial: score},
	}, "", public)
	r.CreatedAt = createdAt
	require.NoError(t, f.repo.SaveResult(context.Background(), r))
	return r
}

func TestPeriodWindow(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		period Period
		start  string
		end    string
	}{
		{PeriodDaily, "2026-10-14", "2026-10-15"},
		{PeriodWeekly, "2026-10-12", "2026-10-19"},
		{PeriodMonthly, "2026-10-01", "2026-11-01"},
		{PeriodAllTime, "2020-01-01", "2026-10-15"},
	}

	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			start, end := tt.period.Window(now)
			assert.Equal(t, tt.start, start.Format(dateLayout))
			assert.Equal(t, tt.end, end.Format(dateLayout))
		})
	}

	sunday := time.Date(2026, 10, 18, 23, 0, 0, 0, time.UTC)
	start, _ := PeriodWeekly.Window(sunday)
	assert.Equal(t, "2026-10-12", start.Format(dateLayout))
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("weekly")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeekly, p)

	_, err = ParsePeriod("yearly")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestUpdateAndGetLeaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	early := f.addResult(t, 80, true, f.now.Add(-2*time.Hour))
	late := f.addResult(t, 80, true, f.now.Add(-time.Hour))
	top := f.addResult(t, 95, true, f.now.Add(-3*time.Hour))
	f.addResult(t, 99, false, f.now.Add(-time.Hour))
	lastWeek := f.addResult(t, 70, true, f.now.AddDate(0, 0, -8))

	require.NoError(t, f.service.UpdateLeaderboards(ctx))

	daily, err := f.service.GetLeaderboard(ctx, PeriodDaily, 0)
	require.NoError(t, err)
	require.Equal(t, 3, daily.Total)
	assert.Equal(t, "2026-10-14", daily.PeriodStart)
	assert.Equal(t, top.ID, daily.Entries[0].ResultID)
	assert.Equal(t, early.ID, daily.Entries[1].ResultID)
	assert.Equal(t, late.ID, daily.Entries[2].ResultID)
	assert.Equal(t, []int{1, 2, 3}, []int{daily.Entries[0].Rank, daily.Entries[1].Rank, daily.Entries[2].Rank})
	assert.Equal(t, scoring.LevelWinner, daily.Entries[0].Level)

	monthly, err := f.service.GetLeaderboard(ctx, PeriodMonthly, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, monthly.Total)
	assert.Equal(t, lastWeek.ID, monthly.Entries[3].ResultID)

	limited, err := f.service.GetLeaderboard(ctx, PeriodAllTime, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, limited.Total)
}

func TestGetLeaderboardInvalidPeriod(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.GetLeaderboard(context.Background(), "yearly", 10)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = f.service.GetResultRank(context.Background(), "x", "yearly")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestLeaderboardCacheIsClearedOnUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.service.GetLeaderboard(ctx, PeriodDaily, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)

	f.addResult(t, 60, true, f.now)

	stale, err := f.service.GetLeaderboard(ctx, PeriodDaily, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, stale.Total)

	require.NoError(t, f.service.UpdateLeaderboards(ctx))

	fresh, err := f.service.GetLeaderboard(ctx, PeriodDaily, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Total)
}

func TestGetResultRank(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addResult(t, 90, true, f.now)
	second := f.addResult(t, 40, true, f.now)
	hidden := f.addResult(t, 100, false, f.now)

	require.NoError(t, f.service.UpdateLeaderboards(ctx))

	entry, err := f.service.GetResultRank(ctx, second.ID, PeriodWeekly)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Rank)
	assert.Equal(t, 40, entry.TotalScore)

	cached, err := f.service.GetResultRank(ctx, second.ID, PeriodWeekly)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, cached.ID)
	assert.Equal(t, entry.Rank, cached.Rank)

	_, err = f.service.GetResultRank(ctx, hidden.ID, PeriodWeekly)
	assert.ErrorIs(t, err, ErrNotRanked)
}

func TestWarmCache(t *testing.T) {
	f := newFixture(t)

	f.service.WarmCache(context.Background())

	stats := f.service.GetCacheStats()
	assert.Equal(t, len(Periods())*2, stats["total_items"])
}
