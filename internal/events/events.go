package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/happiness-o-meter/internal/resilience"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/scoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/survey"
)

// QueueSurveyCompleted receives one message per finished survey.
const QueueSurveyCompleted = "survey.completed"

// SurveyCompleted is the message body published when a session is scored.
type SurveyCompleted struct {
	ResultID        string                   `json:"result_id"`
	SessionID       string                   `json:"session_id"`
	Country         survey.CountryCode       `json:"country"`
	TotalScore      int                      `json:"total_score"`
	Level           scoring.Level            `json:"level"`
	DimensionScores map[survey.Dimension]int `json:"dimension_scores"`
	CompletedAt     time.Time                `json:"completed_at"`
}

// Metrics receives publish outcomes.
type Metrics interface {
	RecordEventPublish(success bool)
}

// Emitter publishes domain events without failing the caller. Publishing is
// retried briefly and skipped entirely while the broker's breaker is open.
type Emitter struct {
	publisher Publisher
	metrics   Metrics
	timeout   time.Duration
	retry     resilience.RetryConfig
	breaker   *resilience.CircuitBreaker
}

// NewEmitter wraps publisher. metrics may be nil.
func NewEmitter(publisher Publisher, metrics Metrics) *Emitter {
	if publisher == nil {
		publisher = NopPublisher{}
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 2

	return &Emitter{
		publisher: publisher,
		metrics:   metrics,
		timeout:   5 * time.Second,
		retry:     retry,
		breaker: resilience.NewCircuitBreaker("rabbitmq", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
		}),
	}
}

// SurveyCompleted publishes evt. Failures are logged and counted only.
func (e *Emitter) SurveyCompleted(ctx context.Context, evt SurveyCompleted) {
	body, err := json.Marshal(evt)
	if err != nil {
		slog.Error("Failed to encode event", "queue", QueueSurveyCompleted, "error", err)
		e.record(false)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	err = e.breaker.Call(func() error {
		return resilience.RetryWithConfig(ctx, e.retry, func() error {
			return e.publisher.Publish(ctx, QueueSurveyCompleted, body)
		})
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		slog.Debug("Broker circuit open, event dropped", "queue", QueueSurveyCompleted, "result_id", evt.ResultID)
		e.record(false)
		return
	}
	if err != nil {
		slog.Warn("Failed to publish event",
			"queue", QueueSurveyCompleted,
			"result_id", evt.ResultID,
			"error", err,
		)
		e.record(false)
		return
	}
	e.record(true)
}

// GetStats reports the broker circuit breaker.
func (e *Emitter) GetStats() map[string]interface{} {
	return e.breaker.GetStats()
}

// Close closes the underlying publisher.
func (e *Emitter) Close() error {
	return e.publisher.Close()
}

func (e *Emitter) record(success bool) {
	if e.metrics != nil {
		e.metrics.RecordEventPublish(success)
	}
}
