package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/diabetes-risk-server/internal/domain"
)

// PredictionCache stores remote predictions keyed by the metrics that produced
// them. Tier 1 is an in-process LRU, tier 2 an optional Redis instance shared
// between processes.
type PredictionCache struct {
	memory     *lru.Cache[string, CachedPrediction]
	redis      *redis.Client
	defaultTTL time.Duration
	logger     *logrus.Logger
}

// CachedPrediction represents a cached remote prediction with metadata
type CachedPrediction struct {
	Data      domain.RemotePrediction `json:"data"`
	CachedAt  time.Time               `json:"cached_at"`
	ExpiresAt time.Time               `json:"expires_at"`
}

func (c CachedPrediction) isExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// NewPredictionCache creates a prediction cache. The Redis tier is enabled only
// when config.RedisURL is set, and its connection is tested up front.
func NewPredictionCache(config domain.CacheConfig, logger *logrus.Logger) (*PredictionCache, error) {
	if config.MemoryItems <= 0 {
		config.MemoryItems = 1024
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = time.Hour
	}

	memory, err := lru.New[string, CachedPrediction](config.MemoryItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	cache := &PredictionCache{
		memory:     memory,
		defaultTTL: config.DefaultTTL,
		logger:     logger,
	}

	if config.RedisURL == "" {
		return cache, nil
	}

	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache.redis = client
	return cache, nil
}

// Get returns the cached prediction for metrics, consulting memory before Redis
func (c *PredictionCache) Get(ctx context.Context, metrics domain.HealthMetrics) (*domain.RemotePrediction, bool, error) {
	key := predictionKey(metrics)
	now := time.Now()

	if entry, ok := c.memory.Get(key); ok {
		if !entry.isExpired(now) {
			return clonePrediction(entry.Data), true, nil
		}
		c.memory.Remove(key)
	}

	if c.redis == nil {
		return nil, false, nil
	}

	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil // Cache miss
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get prediction cache: %w", err)
	}

	var cached CachedPrediction
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	if cached.isExpired(now) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	c.memory.Add(key, cached)
	c.logger.WithField("cache_tier", "redis").Debug("Prediction cache hit")
	return clonePrediction(cached.Data), true, nil
}

// Set caches a remote prediction in both tiers with the default TTL
func (c *PredictionCache) Set(ctx context.Context, metrics domain.HealthMetrics, prediction *domain.RemotePrediction) error {
	if prediction == nil {
		return errors.New("cannot cache nil prediction")
	}

	key := predictionKey(metrics)
	now := time.Now()
	cached := CachedPrediction{
		Data:      *clonePrediction(*prediction),
		CachedAt:  now,
		ExpiresAt: now.Add(c.defaultTTL),
	}

	c.memory.Add(key, cached)

	if c.redis == nil {
		return nil
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction cache data: %w", err)
	}
	return c.redis.Set(ctx, key, jsonData, c.defaultTTL).Err()
}

// Len returns the number of entries held in memory
func (c *PredictionCache) Len() int {
	return c.memory.Len()
}

// Close closes the Redis connection, if any
func (c *PredictionCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

// predictionKey hashes the canonical form of the metrics
func predictionKey(m domain.HealthMetrics) string {
	data := fmt.Sprintf("%g:%s:%g:%g:%g:%g",
		m.Age, m.Gender, m.Glucose, m.BloodPressure, m.BMI, m.Insulin)

	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("prediction:%x", hash[:16])
}

func clonePrediction(p domain.RemotePrediction) *domain.RemotePrediction {
	clone := p
	if p.RiskFactors != nil {
		clone.RiskFactors = append([]string(nil), p.RiskFactors...)
	}
	return &clone
}
