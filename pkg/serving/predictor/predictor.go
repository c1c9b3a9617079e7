package predictor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vitalis-health/obesity-risk/pkg/common/logger"
	"github.com/vitalis-health/obesity-risk/pkg/common/models"
	"github.com/vitalis-health/obesity-risk/pkg/ml/preprocess"
	"github.com/vitalis-health/obesity-risk/pkg/observability/metrics"
	"github.com/vitalis-health/obesity-risk/pkg/observation"
	"github.com/vitalis-health/obesity-risk/pkg/serving/artifacts"
	"github.com/vitalis-health/obesity-risk/pkg/serving/labels"
)

var ErrArtifactsUnavailable = errors.New("model artifacts unavailable")

// BundleSource provides the current artifact bundle.
type BundleSource interface {
	Load() (*artifacts.Bundle, error)
}

// Cache stores results of earlier predictions for identical records.
type Cache interface {
	Get(ctx context.Context, key string) (*models.PredictionResult, bool, error)
	Set(ctx context.Context, key string, result models.PredictionResult) error
}

// Publisher announces completed predictions.
type Publisher interface {
	PublishPrediction(ctx context.Context, result models.PredictionResult) error
}

type Option func(*Predictor)

func WithCache(cache Cache) Option {
	return func(p *Predictor) { p.cache = cache }
}

func WithPublisher(publisher Publisher) Option {
	return func(p *Predictor) { p.publisher = publisher }
}

// Predictor turns a patient observation into an obesity category. It is
// safe for concurrent use.
type Predictor struct {
	source    BundleSource
	cache     Cache
	publisher Publisher
	now       func() time.Time
}

func NewPredictor(source BundleSource, opts ...Option) *Predictor {
	p := &Predictor{source: source, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Predictor) Predict(ctx context.Context, obs observation.Observation) (models.PredictionResult, error) {
	start := p.now()

	result, err := p.predict(ctx, obs)
	if err != nil {
		metrics.ObserveFailure()
		switch {
		case observation.IsValidationError(err):
			metrics.ObserveValidationRejected()
		case preprocess.IsUnknownCategory(err):
			metrics.ObserveUnknownCategory()
		case errors.Is(err, ErrArtifactsUnavailable):
			metrics.ObserveArtifactLoadFailure()
		}
		return models.PredictionResult{}, err
	}

	result.ID = uuid.New().String()
	result.CreatedAt = start.UTC()
	result.Latency = p.now().Sub(start)
	metrics.ObservePrediction(result.Label, result.Cached, result.Latency)

	if p.publisher != nil {
		if err := p.publisher.PublishPrediction(ctx, result); err != nil {
			logger.Log.WithError(err).WithField("prediction_id", result.ID).Warn("failed to publish prediction")
		}
	}

	logger.Log.WithFields(map[string]interface{}{
		"prediction_id": result.ID,
		"label":         result.Label,
		"cached":        result.Cached,
		"latency_ms":    result.Latency.Milliseconds(),
	}).Info("Prediction completed")
	return result, nil
}

func (p *Predictor) predict(ctx context.Context, obs observation.Observation) (models.PredictionResult, error) {
	if err := obs.Validate(); err != nil {
		return models.PredictionResult{}, err
	}

	bundle, err := p.source.Load()
	if err != nil {
		logger.Log.WithError(err).Error("failed to load artifacts")
		return models.PredictionResult{}, fmt.Errorf("%w: %v", ErrArtifactsUnavailable, err)
	}

	schema := bundle.Schema()
	record, err := obs.Record(schema)
	if err != nil {
		return models.PredictionResult{}, err
	}

	key := CacheKey(bundle.Fingerprint(), schema, record)
	if p.cache != nil {
		cached, ok, err := p.cache.Get(ctx, key)
		if err != nil {
			logger.Log.WithError(err).Warn("prediction cache read failed")
		} else if ok {
			cached.Cached = true
			return *cached, nil
		}
	}

	features, err := Features(bundle, record)
	if err != nil {
		return models.PredictionResult{}, err
	}
	label, proba, err := bundle.Model.Predict(features)
	if err != nil {
		return models.PredictionResult{}, err
	}

	bmi, err := obs.BMI()
	if err != nil {
		return models.PredictionResult{}, err
	}

	probabilities := make(map[string]float64, len(proba))
	var confidence float64
	for i, class := range bundle.Model.Classes {
		probabilities[class] = proba[i]
		if class == label {
			confidence = proba[i]
		}
	}

	result := models.PredictionResult{
		Label:          label,
		Classification: labels.Classification(label),
		Probabilities:  probabilities,
		Confidence:     confidence,
		BMI:            bmi,
		BMICategory:    labels.BMICategory(bmi),
		ModelVersion:   bundle.Fingerprint(),
		Record:         record,
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, result); err != nil {
			logger.Log.WithError(err).Warn("prediction cache write failed")
		}
	}
	return result, nil
}

// Features builds the model input row: scaled numeric columns followed by
// the one-hot encoded categorical columns.
func Features(bundle *artifacts.Bundle, record observation.Record) ([]float64, error) {
	schema := bundle.Schema()

	categorical, err := record.Strings(schema.Categorical)
	if err != nil {
		return nil, err
	}
	numeric, err := record.Floats(schema.Numeric)
	if err != nil {
		return nil, err
	}

	xCat, err := bundle.Encoder.Transform(categorical)
	if err != nil {
		return nil, err
	}
	xNum, err := bundle.Scaler.Transform(numeric)
	if err != nil {
		return nil, err
	}

	features := make([]float64, 0, len(xNum)+len(xCat))
	features = append(features, xNum...)
	features = append(features, xCat...)
	return features, nil
}

// CacheKey identifies a record under a given model version.
func CacheKey(version string, schema observation.Schema, record observation.Record) string {
	h := sha256.New()
	h.Write([]byte(version))
	for _, col := range schema.Columns {
		h.Write([]byte{0})
		h.Write([]byte(col))
		h.Write([]byte{'='})
		switch v := record[col].(type) {
		case string:
			h.Write([]byte(v))
		case float64:
			h.Write([]byte(strconv.FormatFloat(v, 'g', -1, 64)))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Schema describes the layout of the currently loaded artifacts.
func (p *Predictor) Schema() (models.SchemaInfo, error) {
	bundle, err := p.source.Load()
	if err != nil {
		return models.SchemaInfo{}, fmt.Errorf("%w: %v", ErrArtifactsUnavailable, err)
	}
	schema := bundle.Schema()
	return models.SchemaInfo{
		ModelVersion: bundle.Fingerprint(),
		Columns:      schema.Columns,
		Numeric:      schema.Numeric,
		Categorical:  schema.Categorical,
		Categories:   bundle.Encoder.Categories,
		Classes:      bundle.Model.Classes,
		LoadedAt:     bundle.LoadedAt,
	}, nil
}
