package serving

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vitalis-health/obesity-risk/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PredictionLog is the persistence model for served predictions.
type PredictionLog struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	ModelVersion   string            `gorm:"column:model_version;index" json:"model_version"`
	Label          string            `gorm:"column:label;index" json:"label"`
	Classification string            `gorm:"column:classification" json:"classification"`
	Confidence     float64           `gorm:"column:confidence" json:"confidence"`
	BMI            float64           `gorm:"column:bmi" json:"bmi"`
	Record         datatypes.JSONMap `gorm:"column:record" json:"record"`
	Probabilities  datatypes.JSONMap `gorm:"column:probabilities" json:"probabilities"`
	Cached         bool              `gorm:"column:cached" json:"cached"`
	LatencyMs      float64           `gorm:"column:latency_ms" json:"latency_ms"`
	CreatedAt      time.Time         `gorm:"column:created_at;index" json:"created_at"`
}

// TableName overrides gorm naming.
func (PredictionLog) TableName() string {
	return "prediction_logs"
}

// NewPredictionLog maps a prediction result onto its persistence model.
func NewPredictionLog(result models.PredictionResult) PredictionLog {
	id, err := uuid.Parse(result.ID)
	if err != nil {
		id = uuid.New()
	}
	probabilities := make(map[string]interface{}, len(result.Probabilities))
	for class, p := range result.Probabilities {
		probabilities[class] = p
	}
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return PredictionLog{
		ID:             id,
		ModelVersion:   result.ModelVersion,
		Label:          result.Label,
		Classification: result.Classification,
		Confidence:     result.Confidence,
		BMI:            result.BMI,
		Record:         datatypes.JSONMap(result.Record),
		Probabilities:  datatypes.JSONMap(probabilities),
		Cached:         result.Cached,
		LatencyMs:      float64(result.Latency.Microseconds()) / 1000.0,
		CreatedAt:      createdAt,
	}
}

// Repository handles prediction logs queries.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PredictionLog{})
}

// RecordPrediction stores a result once; redelivered results are ignored.
func (r *Repository) RecordPrediction(ctx context.Context, result models.PredictionResult) error {
	log := NewPredictionLog(result)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&log).Error
}

// Recent returns the most recent prediction logs up to limit.
func (r *Repository) Recent(ctx context.Context, limit int) ([]PredictionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []PredictionLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
