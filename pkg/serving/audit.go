package serving

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vitalis-health/obesity-risk/pkg/common/kafka"
	"github.com/vitalis-health/obesity-risk/pkg/common/logger"
	"github.com/vitalis-health/obesity-risk/pkg/common/models"
)

// PredictionRecorder persists prediction results.
type PredictionRecorder interface {
	RecordPrediction(ctx context.Context, result models.PredictionResult) error
}

// AuditHandler stores every prediction.completed event; other event types
// are skipped.
func AuditHandler(recorder PredictionRecorder) kafka.EventHandler {
	return func(ctx context.Context, event models.Event) error {
		if event.Type != models.EventPredictionCompleted {
			logger.Log.WithField("event_type", event.Type).Debug("skipping event")
			return nil
		}
		var result models.PredictionResult
		if err := json.Unmarshal(event.Data, &result); err != nil {
			// malformed payloads would be redelivered forever
			logger.Log.WithError(err).WithField("event_id", event.ID).Error("dropping malformed prediction event")
			return nil
		}
		if err := recorder.RecordPrediction(ctx, result); err != nil {
			return fmt.Errorf("record prediction %s: %w", result.ID, err)
		}
		logger.Log.WithFields(map[string]interface{}{
			"prediction_id": result.ID,
			"label":         result.Label,
		}).Info("Prediction recorded")
		return nil
	}
}
