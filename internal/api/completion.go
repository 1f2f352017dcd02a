package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ZanzyTHEbar/happiness-o-meter/internal/database"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/events"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/privacy"
	"github.com/ZanzyTHEbar/happiness-o-meter/internal/session"
)

// CompletionRecorder stores a finished survey, counts it and announces it.
// Only storage failures abort the completion; publishing is best effort.
func CompletionRecorder(results *database.Repository, ps *privacy.PrivacyService, emitter *events.Emitter, metrics *monitoring.Metrics) session.CompletionHook {
	return func(ctx context.Context, c session.Completion) (string, error) {
		record := database.NewSurveyResult(
			c.Session.ID,
			c.Session.Country,
			c.Result,
			ps.AnonymizeIP(c.ClientIP),
			c.Public,
		)
		if err := results.SaveResult(ctx, record); err != nil {
			return "", fmt.Errorf("failed to store result: %w", err)
		}

		if metrics != nil {
			metrics.RecordSurveyCompleted(string(record.Level), string(record.Country))
		}

		if emitter != nil {
			emitter.SurveyCompleted(ctx, events.SurveyCompleted{
				ResultID:        record.ID,
				SessionID:       record.SessionID,
				Country:         record.Country,
				TotalScore:      record.TotalScore,
				Level:           record.Level,
				DimensionScores: record.DimensionScores,
				CompletedAt:     record.CreatedAt,
			})
		}

		slog.Info("Survey completed",
			"result_id", record.ID,
			"country", record.Country,
			"total_score", record.TotalScore,
			"level", record.Level,
			"public", record.IsPublic,
		)
		return record.ID, nil
	}
}
