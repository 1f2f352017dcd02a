package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// redisKeyPrefix is prepended by redis_rate to every key it stores.
const redisKeyPrefix = "rate:"

// InvalidateIP restores every budget of an address: the general per-IP one
// and each per-endpoint one.
func (rl *RateLimiter) InvalidateIP(ctx context.Context, ip string) error {
	suffix := ":" + ip
	if rl.redisLimiter == nil {
		removed := rl.dropFallback(func(key string) bool {
			return key == ipKey(ip) || (strings.HasPrefix(key, endpointKeyPrefix) && strings.HasSuffix(key, suffix))
		})
		slog.Info("Rate limits reset", "ip", ip, "backend", "memory", "buckets", removed)
		return nil
	}

	if err := rl.redisLimiter.Reset(ctx, ipKey(ip)); err != nil {
		return fmt.Errorf("reset %s: %w", ipKey(ip), err)
	}
	removed, err := rl.deleteRedisKeys(ctx, redisKeyPrefix+endpointKey("*", ip))
	if err != nil {
		return err
	}
	slog.Info("Rate limits reset", "ip", ip, "backend", "redis", "buckets", removed+1)
	return nil
}

// InvalidateAll forgets every budget of every client.
func (rl *RateLimiter) InvalidateAll(ctx context.Context) error {
	if rl.redisLimiter == nil {
		removed := rl.dropFallback(func(string) bool { return true })
		slog.Warn("All rate limits reset", "backend", "memory", "buckets", removed)
		return nil
	}

	removed, err := rl.deleteRedisKeys(ctx, redisKeyPrefix+"ratelimit:*")
	if err != nil {
		return err
	}
	slog.Warn("All rate limits reset", "backend", "redis", "buckets", removed)
	return nil
}

func (rl *RateLimiter) dropFallback(match func(key string) bool) int {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	removed := 0
	for key := range rl.fallbackLimiters {
		if match(key) {
			delete(rl.fallbackLimiters, key)
			removed++
		}
	}
	return removed
}

// deleteRedisKeys removes the keys matching pattern with SCAN, never KEYS.
func (rl *RateLimiter) deleteRedisKeys(ctx context.Context, pattern string) (int64, error) {
	client := rl.redisClient.GetClient()

	var deleted int64
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	batch := make([]string, 0, 100)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("delete rate limit keys: %w", err)
		}
		deleted += n
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan %s: %w", pattern, err)
	}
	return deleted, flush()
}
