// Package privacy anonymizes client data and enforces result retention.
package privacy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/happiness-o-meter/internal/database"
)

// DefaultRetentionDays keeps stored results for one year.
const DefaultRetentionDays = 365

// ResultStore is the persistence the privacy service needs
type ResultStore interface {
	DeleteResult(ctx context.Context, id string) (bool, error)
	DeleteResultsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CacheInvalidator drops derived data that may still reference deleted results
type CacheInvalidator interface {
	InvalidateCache()
}

// PrivacyService handles anonymization, deletion and retention
type PrivacyService struct {
	store         ResultStore
	caches        []CacheInvalidator
	retentionDays int
}

// NewService creates a privacy service. Non-positive retention selects the default.
func NewService(store ResultStore, retentionDays int, caches ...CacheInvalidator) *PrivacyService {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &PrivacyService{
		store:         store,
		caches:        caches,
		retentionDays: retentionDays,
	}
}

// AnonymizeIP returns the hex SHA-256 of an address. Empty input stays empty.
func (ps *PrivacyService) AnonymizeIP(ip string) string {
	if ip == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:])
}

// DeleteResult removes a stored result and its leaderboard rows
func (ps *PrivacyService) DeleteResult(ctx context.Context, id string) error {
	deleted, err := ps.store.DeleteResult(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	if !deleted {
		return database.ErrNotFound
	}

	ps.invalidate()
	slog.Info("Result deleted on request", "result_id", id)
	return nil
}

// CleanupExpired deletes results older than the retention period
func (ps *PrivacyService) CleanupExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -ps.retentionDays)

	n, err := ps.store.DeleteResultsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired results: %w", err)
	}
	if n > 0 {
		ps.invalidate()
	}

	slog.Info("Data cleanup completed", "cutoff_date", cutoff.Format(time.RFC3339), "results_deleted", n)
	return n, nil
}

// ScheduleDataCleanup runs CleanupExpired every interval until ctx is done
func (ps *PrivacyService) ScheduleDataCleanup(ctx context.Context, interval time.Duration) {
	slog.Info("Scheduling data cleanup", "retention_days", ps.retentionDays, "interval", interval.String())

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := ps.CleanupExpired(ctx); err != nil {
					slog.Error("Scheduled data cleanup failed", "error", err)
				}
			}
		}
	}()
}

// RetentionPolicy describes what is stored and for how long
func (ps *PrivacyService) RetentionPolicy() map[string]interface{} {
	return map[string]interface{}{
		"result_retention_days":  ps.retentionDays,
		"session_retention":      "until expiry of the session token",
		"ip_storage":             "SHA-256 hash only",
		"anonymization_method":   "SHA-256",
		"stored_fields":          []string{"country", "total_score", "level", "dimension_scores", "is_public", "created_at"},
		"answers_stored":         false,
		"leaderboard_visibility": "opt-in per result",
		"deletion":               "DELETE /api/results/{id}",
	}
}

func (ps *PrivacyService) invalidate() {
	for _, c := range ps.caches {
		c.InvalidateCache()
	}
}
