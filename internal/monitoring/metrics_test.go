package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.IncrementRequest()
	m.IncrementRequest()
	m.IncrementError()
	m.IncrementCacheHit()
	m.IncrementCacheMiss()
	m.IncrementCacheMiss()
	m.IncrementScoresCalculated()
	m.RecordEventPublish(true)
	m.RecordEventPublish(false)

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats["total_requests"])
	assert.Equal(t, int64(1), stats["error_count"])
	assert.Equal(t, 50.0, stats["error_rate_percent"])
	assert.InDelta(t, 33.33, stats["cache_hit_rate_percent"], 0.01)
	assert.Equal(t, map[string]int64{"published": 1, "errors": 1}, stats["events"])
}

func TestRecordSurveyCompleted(t *testing.T) {
	m := NewMetrics()

	m.RecordSurveyCompleted("winner", "US")
	m.RecordSurveyCompleted("struggling", "US")
	m.RecordSurveyCompleted("winner", "JP")

	stats := m.GetSurveyStats()
	assert.Equal(t, int64(3), stats["completed"])
	assert.Equal(t, map[string]int64{"winner": 2, "struggling": 1}, stats["by_level"])
	assert.Equal(t, map[string]int64{"US": 2, "JP": 1}, stats["by_country"])
}

func TestPercentileResponseTime(t *testing.T) {
	m := NewMetrics()
	assert.Equal(t, time.Duration(0), m.GetPercentileResponseTime(50))

	for i := 1; i <= 100; i++ {
		m.RecordResponseTime(time.Duration(i) * time.Millisecond)
	}

	assert.Equal(t, 50*time.Millisecond, m.GetPercentileResponseTime(50))
	assert.Equal(t, 100*time.Millisecond, m.GetPercentileResponseTime(100))
	assert.InDelta(t, 50.5, m.GetStats()["avg_response_time_ms"], 1e-9)
}

func TestResponseSamplesAreBounded(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < maxResponseSamples+10; i++ {
		m.RecordResponseTime(time.Millisecond)
	}
	assert.Len(t, m.ResponseTimes, maxResponseSamples)
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.IncrementRequest()
	m.RecordRequestByStatus(200)
	m.RecordSurveyCompleted("middle", "DE")
	m.IncrementRateLimitIPBlock()

	m.Reset()

	stats := m.GetStats()
	assert.Equal(t, int64(0), stats["total_requests"])
	assert.Empty(t, m.GetStatusCodeDistribution())
	assert.Equal(t, int64(0), m.GetSurveyStats()["completed"])
	assert.Equal(t, int64(0), m.GetRateLimitStats()["ip_blocks"])
}
