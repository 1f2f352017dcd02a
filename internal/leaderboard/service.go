// Package leaderboard ranks public survey results per period.
package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/happiness-o-meter/internal/database"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/scoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/survey"
)

// Period selects the time window of a leaderboard
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all_time"
)

const (
	// DefaultLimit is used when no limit is requested
	DefaultLimit = 50
	// MaxEntries bounds both stored rankings and requested limits
	MaxEntries = 100

	dateLayout = "2006-01-02"
)

var (
	// ErrInvalidPeriod is returned for an unknown period name
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrNotRanked is returned when a result has no entry in a period
	ErrNotRanked = errors.New("result is not ranked")

	allTimeStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Periods lists the supported periods
func Periods() []Period {
	return []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodAllTime}
}

// ParsePeriod validates a period name
func ParsePeriod(s string) (Period, error) {
	for _, p := range Periods() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

// Window returns the [start, end) range of the period containing now, in UTC
func (p Period) Window(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch p {
	case PeriodDaily:
		return today, today.AddDate(0, 0, 1)
	case PeriodWeekly:
		offset := (int(today.Weekday()) + 6) % 7 // days since Monday
		start := today.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case PeriodMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	default:
		return allTimeStart, today.AddDate(0, 0, 1)
	}
}

// LeaderboardEntry represents one ranked result
type LeaderboardEntry struct {
	ID          string             `json:"id"`
	ResultID    string             `json:"result_id"`
	Period      Period             `json:"period"`
	PeriodStart string             `json:"period_start"`
	PeriodEnd   string             `json:"period_end"`
	Rank        int                `json:"rank"`
	TotalScore  int                `json:"total_score"`
	Level       scoring.Level      `json:"level"`
	Country     survey.CountryCode `json:"country"`
	CreatedAt   time.Time          `json:"created_at"`
}

// LeaderboardResponse represents the response for leaderboard queries
type LeaderboardResponse struct {
	Entries     []LeaderboardEntry `json:"entries"`
	Total       int                `json:"total"`
	Period      Period             `json:"period"`
	PeriodStart string             `json:"period_start"`
	PeriodEnd   string             `json:"period_end"`
}

// Service handles leaderboard operations
type Service struct {
	db    *database.DB
	cache *LeaderboardCache
	now   func() time.Time
}

// NewService creates a leaderboard service with a 15 minute cache
func NewService(db *database.DB) *Service {
	return NewServiceWithCache(db, NewLeaderboardCache(15*time.Minute))
}

// NewServiceWithCache creates a leaderboard service with a custom cache
func NewServiceWithCache(db *database.DB, cache *LeaderboardCache) *Service {
	return &Service{
		db:    db,
		cache: cache,
		now:   time.Now,
	}
}

// UpdateLeaderboards recomputes the rankings of every period and clears the cache
func (s *Service) UpdateLeaderboards(ctx context.Context) error {
	now := s.now()

	var failed []error
	for _, period := range Periods() {
		if err := s.updatePeriod(ctx, period, now); err != nil {
			slog.Error("Failed to update leaderboard", "period", period, "error", err)
			failed = append(failed, err)
		}
	}

	s.cache.InvalidateAll()

	return errors.Join(failed...)
}

type rankedResult struct {
	id      string
	score   int
	level   string
	country string
}

func (s *Service) updatePeriod(ctx context.Context, period Period, now time.Time) error {
	start, end := period.Window(now)

	query := `
		SELECT id, total_score, level, country
		FROM survey_results
		WHERE is_public = TRUE AND created_at >= ? AND created_at < ?
		ORDER BY total_score DESC, created_at ASC
		LIMIT ?
	`
	args := []interface{}{start, end, MaxEntries}
	if period == PeriodAllTime {
		query = `
			SELECT id, total_score, level, country
			FROM survey_results
			WHERE is_public = TRUE
			ORDER BY total_score DESC, created_at ASC
			LIMIT ?
		`
		args = []interface{}{MaxEntries}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query top scores: %w", err)
	}

	var ranked []rankedResult
	for rows.Next() {
		var r rankedResult
		if err := rows.Scan(&r.id, &r.score, &r.level, &r.country); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan row: %w", err)
		}
		ranked = append(ranked, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read top scores: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM leaderboard_entries WHERE period = ?`, string(period)); err != nil {
		return fmt.Errorf("failed to clear existing entries: %w", err)
	}

	startStr, endStr := start.Format(dateLayout), end.Format(dateLayout)
	createdAt := now.UTC()
	for i, r := range ranked {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO leaderboard_entries (
				id, result_id, period, period_start, period_end, rank,
				total_score, level, country, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), r.id, string(period), startStr, endStr, i+1,
			r.score, r.level, r.country, createdAt)
		if err != nil {
			return fmt.Errorf("failed to save leaderboard entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit leaderboard: %w", err)
	}

	slog.Info("Updated leaderboard", "period", period, "entries", len(ranked))
	return nil
}

// GetLeaderboard returns the current ranking of a period. Limits outside
// 1..100 are replaced by the default or clamped.
func (s *Service) GetLeaderboard(ctx context.Context, period Period, limit int) (*LeaderboardResponse, error) {
	if _, err := ParsePeriod(string(period)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxEntries {
		limit = MaxEntries
	}

	if cached, found := s.cache.GetLeaderboard(period, limit); found {
		return cached, nil
	}

	start, end := period.Window(s.now())
	response := &LeaderboardResponse{
		Entries:     []LeaderboardEntry{},
		Period:      period,
		PeriodStart: start.Format(dateLayout),
		PeriodEnd:   end.Format(dateLayout),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, result_id, period, period_start, period_end, rank,
			   total_score, level, country, created_at
		FROM leaderboard_entries
		WHERE period = ? AND period_start = ?
		ORDER BY rank ASC
		LIMIT ?
	`, string(period), response.PeriodStart, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		response.Entries = append(response.Entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	response.Total = len(response.Entries)

	s.cache.SetLeaderboard(period, limit, response)

	return response, nil
}

// GetResultRank returns the entry of a result in the current ranking of a period
func (s *Service) GetResultRank(ctx context.Context, resultID string, period Period) (*LeaderboardEntry, error) {
	if _, err := ParsePeriod(string(period)); err != nil {
		return nil, err
	}

	if cached, found := s.cache.GetResultRank(resultID, period); found {
		return cached, nil
	}

	start, _ := period.Window(s.now())
	row := s.db.QueryRowContext(ctx, `
		SELECT id, result_id, period, period_start, period_end, rank,
			   total_score, level, country, created_at
		FROM leaderboard_entries
		WHERE result_id = ? AND period = ? AND period_start = ?
	`, resultID, string(period), start.Format(dateLayout))

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotRanked
	}
	if err != nil {
		return nil, err
	}

	s.cache.SetResultRank(resultID, period, entry)
	return entry, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*LeaderboardEntry, error) {
	var (
		entry          LeaderboardEntry
		period         string
		level, country string
	)
	err := row.Scan(
		&entry.ID, &entry.ResultID, &period, &entry.PeriodStart, &entry.PeriodEnd,
		&entry.Rank, &entry.TotalScore, &level, &country, &entry.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
	}

	entry.Period = Period(period)
	entry.Level = scoring.Level(level)
	entry.Country = survey.CountryCode(country)
	return &entry, nil
}

// InvalidateCache drops cached rankings, e.g. after a result is deleted
func (s *Service) InvalidateCache() {
	s.cache.InvalidateAll()
}

// GetCacheStats returns leaderboard cache statistics
func (s *Service) GetCacheStats() map[string]interface{} {
	return s.cache.GetStats()
}

// WarmCache preloads the common leaderboards
func (s *Service) WarmCache(ctx context.Context) {
	s.cache.WarmCache(ctx, s)
}

// StartAutoRefresh recomputes rankings every interval until ctx is done
func (s *Service) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	s.cache.AutoRefresh(ctx, s, interval)
}

// Close releases the cache
func (s *Service) Close() {
	s.cache.Close()
}
