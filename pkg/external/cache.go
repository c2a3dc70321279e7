package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onco-efficacy-engine/internal/domain"
)

const (
	defaultEvidenceTTL = 3 * time.Minute
	defaultPriorTTL    = 15 * time.Minute
)

// CacheClient fronts the evidence provider and clinical-variant database with
// Redis. Keys hash the semantically relevant request inputs; entries are
// written whole by fully-completed calls only, never partially updated.
type CacheClient struct {
	redis       *redis.Client
	evidenceTTL time.Duration
	priorTTL    time.Duration
}

// NewCacheClient creates a cache client and verifies connectivity.
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
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
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	evidenceTTL := config.EvidenceTTL
	if evidenceTTL <= 0 {
		evidenceTTL = defaultEvidenceTTL
	}
	priorTTL := config.PriorTTL
	if priorTTL <= 0 {
		priorTTL = defaultPriorTTL
	}

	return &CacheClient{
		redis:       client,
		evidenceTTL: evidenceTTL,
		priorTTL:    priorTTL,
	}, nil
}

// GetEvidence retrieves a cached evidence result. A miss or a corrupted entry
// returns found=false without error.
func (c *CacheClient) GetEvidence(ctx context.Context, gene, proteinChange, drug, mechanism string) (*domain.EvidenceResult, bool, error) {
	key := evidenceKey(gene, proteinChange, drug, mechanism)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get evidence cache: %w", err)
	}

	var cached domain.EvidenceResult
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	return &cached, true, nil
}

// SetEvidence caches an evidence result. Failed results are never cached.
func (c *CacheClient) SetEvidence(ctx context.Context, gene, proteinChange, drug, mechanism string, result *domain.EvidenceResult) error {
	if result == nil || result.Failed {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence cache data: %w", err)
	}
	return c.redis.Set(ctx, evidenceKey(gene, proteinChange, drug, mechanism), data, c.evidenceTTL).Err()
}

// GetPrior retrieves a cached clinical prior.
func (c *CacheClient) GetPrior(ctx context.Context, variant *domain.Variant) (*domain.ClinicalPrior, bool, error) {
	key := priorKey(variant)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get prior cache: %w", err)
	}

	var cached domain.ClinicalPrior
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	return &cached, true, nil
}

// SetPrior caches a clinical prior.
func (c *CacheClient) SetPrior(ctx context.Context, variant *domain.Variant, prior *domain.ClinicalPrior) error {
	if prior == nil {
		return nil
	}
	data, err := json.Marshal(prior)
	if err != nil {
		return fmt.Errorf("failed to marshal prior cache data: %w", err)
	}
	return c.redis.Set(ctx, priorKey(variant), data, c.priorTTL).Err()
}

// Close closes the Redis connection.
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

func evidenceKey(gene, proteinChange, drug, mechanism string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s", gene, proteinChange, drug, mechanism)))
	return fmt.Sprintf("evidence:%x", hash[:16])
}

func priorKey(variant *domain.Variant) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%s", variant.Key(), variant.Build)))
	return fmt.Sprintf("prior:%x", hash[:16])
}
