package models

import (
	"encoding/json"
	"time"
)

const (
	EventPredictionCompleted = "prediction.completed"
)

// Event Bus models
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Source    string            `json:"source"`
	Data      json.RawMessage   `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// PredictionResult is the outcome of one prediction request.
type PredictionResult struct {
	ID             string                 `json:"id"`
	Label          string                 `json:"label"`
	Classification string                 `json:"classification"`
	Probabilities  map[string]float64     `json:"probabilities"`
	Confidence     float64                `json:"confidence"`
	BMI            float64                `json:"bmi"`
	BMICategory    string                 `json:"bmi_category"`
	ModelVersion   string                 `json:"model_version"`
	Record         map[string]interface{} `json:"record"`
	Cached         bool                   `json:"cached"`
	Latency        time.Duration          `json:"latency"`
	CreatedAt      time.Time              `json:"created_at"`
}

// SchemaInfo describes the fitted feature layout served by the predictor.
type SchemaInfo struct {
	ModelVersion string     `json:"model_version"`
	Columns      []string   `json:"columns"`
	Numeric      []string   `json:"numeric"`
	Categorical  []string   `json:"categorical"`
	Categories   [][]string `json:"categories"`
	Classes      []string   `json:"classes"`
	LoadedAt     time.Time  `json:"loaded_at"`
}
