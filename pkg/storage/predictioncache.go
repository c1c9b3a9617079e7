package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vitalis-health/obesity-risk/pkg/common/logger"
	"github.com/vitalis-health/obesity-risk/pkg/common/models"
)

type keyValue interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// PredictionCache keeps recent prediction results in Redis so repeated
// submissions of the same record skip the model.
type PredictionCache struct {
	client   keyValue
	prefix   string
	cacheTTL time.Duration
}

func NewPredictionCache(client *redis.Client, prefix string, ttl time.Duration) *PredictionCache {
	return newPredictionCache(client, prefix, ttl)
}

func newPredictionCache(client keyValue, prefix string, ttl time.Duration) *PredictionCache {
	if prefix == "" {
		prefix = "prediction"
	}
	return &PredictionCache{client: client, prefix: prefix, cacheTTL: ttl}
}

func (c *PredictionCache) key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

func (c *PredictionCache) Get(ctx context.Context, key string) (*models.PredictionResult, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result models.PredictionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("decode cached prediction: %w", err)
	}
	logger.Log.WithField("key", c.key(key)).Debug("Prediction cache hit")
	return &result, true, nil
}

func (c *PredictionCache) Set(ctx context.Context, key string, result models.PredictionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, c.cacheTTL).Err()
}
