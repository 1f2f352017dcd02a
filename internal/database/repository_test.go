package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/happiness-o-meter/internal/scoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/survey"
)

func newTestRepository(t *testing.T) (*Repository, *DB) {
	t.Helper()
	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), db
}

func sampleResult(country survey.CountryCode, total int, level scoring.Level) *SurveyResult {
	return NewSurveyResult("session-1", country, scoring.Result{
		TotalScore:      total,
		Level:           level,
		DimensionScores: map[survey.Dimension]int{survey.DimensionFamily: 5, survey.DimensionEconomic: total - 5},
	}, "hash", true)
}

func TestNewDBCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	db, err := NewDB(dir)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Join(dir, FileName))
	assert.NoError(t, err)

	stats := db.GetPoolStats()
	assert.Equal(t, 25, stats["max_open_connections"])

	_, err = db.GetPreparedStatement("missing")
	assert.Error(t, err)
}

func TestReopenKeepsSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	db, err := NewDB(dir)
	require.NoError(t, err)

	version, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
	require.NoError(t, NewRepository(db).SaveResult(context.Background(), sampleResult("US", 40, scoring.LevelStruggling)))
	require.NoError(t, db.Close())

	db, err = NewDB(dir)
	require.NoError(t, err)
	defer db.Close()

	version, err = db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)

	var applied int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, len(migrations), applied)

	var results int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM survey_results`).Scan(&results))
	assert.Equal(t, 1, results)
}

func TestSaveAndGetResult(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	saved := sampleResult("JP", 72, scoring.LevelMiddle)
	require.NoError(t, repo.SaveResult(ctx, saved))

	got, err := repo.GetResult(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "session-1", got.SessionID)
	assert.Equal(t, survey.CountryCode("JP"), got.Country)
	assert.Equal(t, 72, got.TotalScore)
	assert.Equal(t, scoring.LevelMiddle, got.Level)
	assert.Equal(t, saved.DimensionScores, got.DimensionScores)
	assert.Equal(t, "hash", got.IPHash)
	assert.True(t, got.IsPublic)
	assert.WithinDuration(t, saved.CreatedAt, got.CreatedAt, time.Second)
}

func TestGetResultNotFound(t *testing.T) {
	repo, _ := newTestRepository(t)

	_, err := repo.GetResult(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountryStats(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	for _, r := range []*SurveyResult{
		sampleResult("US", 90, scoring.LevelWinner),
		sampleResult("US", 50, scoring.LevelStruggling),
		sampleResult("US", 52, scoring.LevelStruggling),
		sampleResult("CN", 61, scoring.LevelOrdinary),
	} {
		require.NoError(t, repo.SaveResult(ctx, r))
	}

	stats, err := repo.CountryStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, survey.CountryCode("CN"), stats[0].Country)
	assert.Equal(t, 1, stats[0].Count)
	assert.Equal(t, 61.0, stats[0].AverageScore)

	assert.Equal(t, survey.CountryCode("US"), stats[1].Country)
	assert.Equal(t, 3, stats[1].Count)
	assert.InDelta(t, 64.0, stats[1].AverageScore, 1e-9)
	assert.Equal(t, map[scoring.Level]int{scoring.LevelWinner: 1, scoring.LevelStruggling: 2}, stats[1].Levels)
}

func TestDeleteResult(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()

	r := sampleResult("DE", 80, scoring.LevelSuccessful)
	require.NoError(t, repo.SaveResult(ctx, r))

	_, err := db.Exec(`INSERT INTO leaderboard_entries
		(id, result_id, period, period_start, period_end, rank, total_score, level, country, created_at)
		VALUES ('e1', ?, 'all_time', '2020-01-01', '2030-01-01', 1, 80, 'successful', 'DE', ?)`, r.ID, time.Now().UTC())
	require.NoError(t, err)

	deleted, err := repo.DeleteResult(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	var entries int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM leaderboard_entries`).Scan(&entries))
	assert.Equal(t, 0, entries)

	deleted, err = repo.DeleteResult(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteResultsBefore(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	old := sampleResult("US", 40, scoring.LevelStruggling)
	old.CreatedAt = time.Now().UTC().AddDate(0, 0, -400)
	fresh := sampleResult("US", 40, scoring.LevelStruggling)

	require.NoError(t, repo.SaveResult(ctx, old))
	require.NoError(t, repo.SaveResult(ctx, fresh))

	n, err := repo.DeleteResultsBefore(ctx, time.Now().AddDate(0, 0, -365))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := repo.CountResults(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = repo.GetResult(ctx, fresh.ID)
	assert.NoError(t, err)
}
