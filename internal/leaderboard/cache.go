package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/happiness-o-meter/internal/cache"
)

const (
	leaderboardPrefix = "leaderboard:"
	rankPrefix        = "rank:"
)

// LeaderboardCache provides caching for leaderboard data
type LeaderboardCache struct {
	cache *cache.Cache
}

// NewLeaderboardCache creates a new leaderboard cache
func NewLeaderboardCache(ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		cache: cache.NewCache(ttl),
	}
}

func leaderboardKey(period Period, limit int) string {
	return fmt.Sprintf("%s%s:%d", leaderboardPrefix, period, limit)
}

func rankKey(resultID string, period Period) string {
	return fmt.Sprintf("%s%s:%s", rankPrefix, resultID, period)
}

// GetLeaderboard retrieves cached leaderboard data
func (lc *LeaderboardCache) GetLeaderboard(period Period, limit int) (*LeaderboardResponse, bool) {
	key := leaderboardKey(period, limit)

	data, found := lc.cache.Get(key)
	if !found {
		return nil, false
	}

	var response LeaderboardResponse
	if err := json.Unmarshal(data, &response); err != nil {
		slog.Error("Failed to unmarshal cached leaderboard data", "error", err, "key", key)
		return nil, false
	}

	return &response, true
}

// SetLeaderboard caches leaderboard data
func (lc *LeaderboardCache) SetLeaderboard(period Period, limit int, response *LeaderboardResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal leaderboard data for cache", "error", err, "period", period)
		return
	}

	lc.cache.Set(leaderboardKey(period, limit), data)
}

// GetResultRank retrieves a cached rank entry
func (lc *LeaderboardCache) GetResultRank(resultID string, period Period) (*LeaderboardEntry, bool) {
	data, found := lc.cache.Get(rankKey(resultID, period))
	if !found {
		return nil, false
	}

	var entry LeaderboardEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Error("Failed to unmarshal cached rank data", "error", err, "result_id", resultID)
		return nil, false
	}

	return &entry, true
}

// SetResultRank caches a rank entry
func (lc *LeaderboardCache) SetResultRank(resultID string, period Period, entry *LeaderboardEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		slog.Error("Failed to marshal rank data for cache", "error", err, "result_id", resultID)
		return
	}

	lc.cache.Set(rankKey(resultID, period), data)
}

// InvalidateAll drops every cached leaderboard and rank
func (lc *LeaderboardCache) InvalidateAll() {
	removed := lc.cache.DeletePrefix(leaderboardPrefix) + lc.cache.DeletePrefix(rankPrefix)
	slog.Debug("Leaderboard cache invalidated", "removed", removed)
}

// GetStats returns cache statistics
func (lc *LeaderboardCache) GetStats() map[string]interface{} {
	return lc.cache.Stats()
}

// Close stops the underlying cache sweeper
func (lc *LeaderboardCache) Close() {
	lc.cache.Close()
}

// WarmCache loads the default-sized leaderboards of every period
func (lc *LeaderboardCache) WarmCache(ctx context.Context, service *Service) {
	for _, period := range Periods() {
		for _, limit := range []int{DefaultLimit, 25} {
			// GetLeaderboard stores the response on a miss
			if _, err := service.GetLeaderboard(ctx, period, limit); err != nil {
				slog.Error("Failed to warm leaderboard cache", "error", err, "period", period, "limit", limit)
			}
		}
	}
}

// AutoRefresh recomputes rankings and rewarms the cache every interval until ctx is done
func (lc *LeaderboardCache) AutoRefresh(ctx context.Context, service *Service, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := service.UpdateLeaderboards(ctx); err != nil {
					slog.Error("Leaderboard refresh failed", "error", err)
					continue
				}
				lc.WarmCache(ctx, service)
			}
		}
	}()
}
