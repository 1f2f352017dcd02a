package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/happiness-o-meter/internal/scoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/survey"
)

// ErrNotFound is returned when a result does not exist
var ErrNotFound = errors.New("result not found")

// Repository handles survey result persistence
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveResult inserts a completed survey result
func (r *Repository) SaveResult(ctx context.Context, result *SurveyResult) error {
	dimensions, err := json.Marshal(result.DimensionScores)
	if err != nil {
		return fmt.Errorf("failed to marshal dimension scores: %w", err)
	}

	stmt, err := r.db.GetPreparedStatement(stmtInsertResult)
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx,
		result.ID, result.SessionID, string(result.Country), result.TotalScore,
		string(result.Level), string(dimensions), result.IPHash, result.IsPublic,
		result.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	return nil
}

// GetResult loads a result by id
func (r *Repository) GetResult(ctx context.Context, id string) (*SurveyResult, error) {
	stmt, err := r.db.GetPreparedStatement(stmtGetResult)
	if err != nil {
		return nil, err
	}

	var (
		result     SurveyResult
		country    string
		level      string
		dimensions string
		ipHash     sql.NullString
	)
	err = stmt.QueryRowContext(ctx, id).Scan(
		&result.ID, &result.SessionID, &country, &result.TotalScore,
		&level, &dimensions, &ipHash, &result.IsPublic, &result.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	result.Country = survey.CountryCode(country)
	result.Level = scoring.Level(level)
	result.IPHash = ipHash.String
	if err := json.Unmarshal([]byte(dimensions), &result.DimensionScores); err != nil {
		return nil, fmt.Errorf("failed to decode dimension scores: %w", err)
	}

	return &result, nil
}

// CountryStats returns per-country result counts, averages and level distribution
func (r *Repository) CountryStats(ctx context.Context) ([]CountryStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT country, COUNT(*), AVG(total_score)
		FROM survey_results
		GROUP BY country
		ORDER BY country
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query country stats: %w", err)
	}

	var stats []CountryStats
	index := make(map[survey.CountryCode]int)
	for rows.Next() {
		var s CountryStats
		var country string
		if err := rows.Scan(&country, &s.Count, &s.AverageScore); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan country stats: %w", err)
		}
		s.Country = survey.CountryCode(country)
		s.Levels = make(map[scoring.Level]int)
		index[s.Country] = len(stats)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read country stats: %w", err)
	}
	rows.Close()

	levelRows, err := r.db.QueryContext(ctx, `
		SELECT country, level, COUNT(*)
		FROM survey_results
		GROUP BY country, level
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query level distribution: %w", err)
	}
	defer levelRows.Close()

	for levelRows.Next() {
		var country, level string
		var count int
		if err := levelRows.Scan(&country, &level, &count); err != nil {
			return nil, fmt.Errorf("failed to scan level distribution: %w", err)
		}
		if i, ok := index[survey.CountryCode(country)]; ok {
			stats[i].Levels[scoring.Level(level)] = count
		}
	}

	return stats, levelRows.Err()
}

// DeleteResult removes a result and, through the foreign key, its leaderboard rows.
// It reports whether a row was deleted.
func (r *Repository) DeleteResult(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM survey_results WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete result: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count deleted results: %w", err)
	}
	return n > 0, nil
}

// DeleteResultsBefore removes every result created before cutoff
func (r *Repository) DeleteResultsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM survey_results WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired results: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired results: %w", err)
	}
	return n, nil
}

// CountResults returns the number of stored results
func (r *Repository) CountResults(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM survey_results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}
