package predictor

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/vitalis-health/obesity-risk/pkg/common/logger"
	"github.com/vitalis-health/obesity-risk/pkg/common/models"
	"github.com/vitalis-health/obesity-risk/pkg/ml/preprocess"
	"github.com/vitalis-health/obesity-risk/pkg/observability/metrics"
	"github.com/vitalis-health/obesity-risk/pkg/observation"
	"github.com/vitalis-health/obesity-risk/pkg/serving/artifacts"
	"github.com/vitalis-health/obesity-risk/pkg/serving/artifacts/artifactstest"
)

func TestMain(m *testing.M) {
	logger.Silence()
	os.Exit(m.Run())
}

type memoryCache struct {
	entries map[string]models.PredictionResult
	gets    int
	failGet bool
}

func (c *memoryCache) Get(ctx context.Context, key string) (*models.PredictionResult, bool, error) {
	c.gets++
	if c.failGet {
		return nil, false, errors.New("cache down")
	}
	r, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, result models.PredictionResult) error {
	c.entries[key] = result
	return nil
}

type recordingPublisher struct {
	published []models.PredictionResult
	err       error
}

func (p *recordingPublisher) PublishPrediction(ctx context.Context, result models.PredictionResult) error {
	p.published = append(p.published, result)
	return p.err
}

type failingSource struct{}

func (failingSource) Load() (*artifacts.Bundle, error) {
	return nil, errors.New("no such file")
}

func newLoader(t *testing.T) *artifacts.Loader {
	t.Helper()
	dir := t.TempDir()
	if err := artifactstest.Write(dir); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return artifacts.NewLoader(dir, artifacts.DefaultFiles())
}

func patient() observation.Observation {
	return observation.Observation{
		Gender:        "Male",
		Age:           30,
		Height:        1.70,
		Weight:        70,
		FamilyHistory: "yes",
		FAVC:          "yes",
		FCVC:          2,
		NCP:           3,
		CAEC:          "Sometimes",
		SMOKE:         "no",
		CH2O:          2,
		SCC:           "no",
		FAF:           1,
		TUE:           1,
		CALC:          "no",
		MTRANS:        "Public_Transportation",
	}
}

func TestPredictNormalWeight(t *testing.T) {
	p := NewPredictor(newLoader(t))

	result, err := p.Predict(context.Background(), patient())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Label != "Normal_Weight" {
		t.Fatalf("expected Normal_Weight, got %s", result.Label)
	}
	if result.Classification != "Peso normal" {
		t.Fatalf("unexpected classification %q", result.Classification)
	}
	if math.Abs(result.Confidence-0.75) > 1e-9 {
		t.Fatalf("expected confidence 0.75, got %v", result.Confidence)
	}
	if math.Abs(result.Probabilities["Overweight_Level_I"]-0.25) > 1e-9 {
		t.Fatalf("unexpected probabilities %v", result.Probabilities)
	}
	if math.Abs(result.BMI-70/(1.7*1.7)) > 1e-9 {
		t.Fatalf("unexpected bmi %v", result.BMI)
	}
	if result.ID == "" || result.ModelVersion == "" {
		t.Fatalf("expected id and model version, got %+v", result)
	}
	if len(result.Record) != 17 {
		t.Fatalf("expected 17 record columns, got %d", len(result.Record))
	}
}

func TestPredictObesity(t *testing.T) {
	p := NewPredictor(newLoader(t))

	obs := patient()
	obs.Weight = 100 // BMI 34.6
	result, err := p.Predict(context.Background(), obs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Label != "Obesity_Type_I" {
		t.Fatalf("expected Obesity_Type_I, got %s", result.Label)
	}

	obs.MTRANS = "Walking"
	obs.Weight = 45 // BMI 15.6
	result, err = p.Predict(context.Background(), obs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// tree one votes insufficient, tree two votes normal: tie goes to the first class
	if result.Label != "Insufficient_Weight" {
		t.Fatalf("expected Insufficient_Weight, got %s", result.Label)
	}
}

func TestPredictWithoutBMIColumn(t *testing.T) {
	dir := t.TempDir()
	if err := artifactstest.WriteWithoutBMI(dir); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	p := NewPredictor(artifacts.NewLoader(dir, artifacts.DefaultFiles()))

	info, err := p.Schema()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.Columns) != 16 || len(info.Numeric) != 8 {
		t.Fatalf("unexpected schema %+v", info)
	}

	result, err := p.Predict(context.Background(), patient())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Label != "Normal_Weight" || math.Abs(result.Confidence-0.75) > 1e-9 {
		t.Fatalf("unexpected result %s (%v)", result.Label, result.Confidence)
	}
	if len(result.Record) != 16 {
		t.Fatalf("expected 16 record columns, got %d", len(result.Record))
	}
	if _, ok := result.Record[observation.ColBMI]; ok {
		t.Fatal("BMI must not be sent to a model fitted without it")
	}
	// BMI is still reported for display
	if math.Abs(result.BMI-70/(1.7*1.7)) > 1e-9 {
		t.Fatalf("unexpected bmi %v", result.BMI)
	}

	obs := patient()
	obs.Weight = 115
	result, err = p.Predict(context.Background(), obs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Label != "Obesity_Type_II" {
		t.Fatalf("expected Obesity_Type_II, got %s", result.Label)
	}
}

func TestPredictRejectsUnknownCategory(t *testing.T) {
	metrics.Reset()
	p := NewPredictor(newLoader(t))

	obs := patient()
	obs.Gender = "male"
	_, err := p.Predict(context.Background(), obs)
	if err == nil {
		t.Fatal("expected error for lowercase category")
	}
	if !preprocess.IsUnknownCategory(err) {
		t.Fatalf("expected unknown category error, got %v", err)
	}
	if metrics.PredictionsFailed() != 1 {
		t.Fatalf("expected failure to be counted")
	}
}

func TestPredictRejectsOutOfRange(t *testing.T) {
	p := NewPredictor(newLoader(t))
	obs := patient()
	obs.Age = 120
	if _, err := p.Predict(context.Background(), obs); !observation.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPredictArtifactsUnavailable(t *testing.T) {
	p := NewPredictor(failingSource{})
	if _, err := p.Predict(context.Background(), patient()); !errors.Is(err, ErrArtifactsUnavailable) {
		t.Fatalf("expected artifacts error, got %v", err)
	}
	if _, err := p.Schema(); !errors.Is(err, ErrArtifactsUnavailable) {
		t.Fatalf("expected artifacts error, got %v", err)
	}
}

func TestPredictUsesCache(t *testing.T) {
	cache := &memoryCache{entries: map[string]models.PredictionResult{}}
	p := NewPredictor(newLoader(t), WithCache(cache))

	first, err := p.Predict(context.Background(), patient())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Cached {
		t.Fatal("first prediction should not be cached")
	}
	second, err := p.Predict(context.Background(), patient())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Cached || second.Label != first.Label {
		t.Fatalf("expected cached %s, got %+v", first.Label, second)
	}
	if second.ID == first.ID {
		t.Fatal("expected a fresh id per request")
	}
	if len(cache.entries) != 1 {
		t.Fatalf("expected one cache entry, got %d", len(cache.entries))
	}
}

func TestPredictIgnoresCacheFailures(t *testing.T) {
	cache := &memoryCache{entries: map[string]models.PredictionResult{}, failGet: true}
	p := NewPredictor(newLoader(t), WithCache(cache))
	if _, err := p.Predict(context.Background(), patient()); err != nil {
		t.Fatalf("cache failure must not fail prediction: %v", err)
	}
}

func TestPredictPublishes(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker down")}
	p := NewPredictor(newLoader(t), WithPublisher(publisher))

	result, err := p.Predict(context.Background(), patient())
	if err != nil {
		t.Fatalf("publish failure must not fail prediction: %v", err)
	}
	if len(publisher.published) != 1 || publisher.published[0].ID != result.ID {
		t.Fatalf("expected prediction to be published, got %+v", publisher.published)
	}
}

func TestFeaturesLayout(t *testing.T) {
	bundle, err := newLoader(t).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	record, err := patient().Record(bundle.Schema())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	features, err := Features(bundle, record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(features) != bundle.Model.NFeatures {
		t.Fatalf("expected %d features, got %d", bundle.Model.NFeatures, len(features))
	}
	// numeric block first: Age is unscaled in the fixture
	if features[0] != 30 {
		t.Fatalf("expected Age first, got %v", features[0])
	}
	// Gender_Male directly follows the numeric block
	if features[9] != 0 || features[10] != 1 {
		t.Fatalf("expected Gender one-hot after numeric block, got %v", features[9:11])
	}
}

func TestCacheKeyStable(t *testing.T) {
	schema := observation.DefaultSchema(true)
	a, _ := patient().Record(schema)
	b, _ := patient().Record(schema)
	if CacheKey("v1", schema, a) != CacheKey("v1", schema, b) {
		t.Fatal("expected identical records to share a key")
	}
	if CacheKey("v1", schema, a) == CacheKey("v2", schema, a) {
		t.Fatal("expected model version to change the key")
	}
	other := patient()
	other.Weight = 71
	c, _ := other.Record(schema)
	if CacheKey("v1", schema, a) == CacheKey("v1", schema, c) {
		t.Fatal("expected different records to have different keys")
	}
}

func TestSchemaInfo(t *testing.T) {
	info, err := NewPredictor(newLoader(t)).Schema()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.Classes) != 7 || len(info.Categories) != len(info.Categorical) {
		t.Fatalf("unexpected schema info %+v", info)
	}
}
