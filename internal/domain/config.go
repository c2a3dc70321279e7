package domain

import "time"

// SequenceScorerConfig configures one sequence scorer endpoint. The enhanced
// scorer shares the shape; it differs only in endpoint and coverage.
type SequenceScorerConfig struct {
	BaseURL   string        `mapstructure:"base_url" json:"base_url"`
	APIKey    string        `mapstructure:"api_key" json:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit" json:"rate_limit"`
	Enabled   bool          `mapstructure:"enabled" json:"enabled"`
}

// EvidenceConfig configures the literature/clinical evidence provider.
type EvidenceConfig struct {
	BaseURL   string        `mapstructure:"base_url" json:"base_url"`
	APIKey    string        `mapstructure:"api_key" json:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit" json:"rate_limit"`
}

// ClinicalDBConfig configures the clinical-variant database client.
type ClinicalDBConfig struct {
	BaseURL   string        `mapstructure:"base_url" json:"base_url"`
	APIKey    string        `mapstructure:"api_key" json:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit" json:"rate_limit"`
}

// InsightsConfig configures the auxiliary insights provider.
type InsightsConfig struct {
	BaseURL   string        `mapstructure:"base_url" json:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout" json:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit" json:"rate_limit"`
}

// CacheConfig configures the Redis cache fronting the external providers.
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url" json:"redis_url"`
	PoolSize    int           `mapstructure:"pool_size" json:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout" json:"pool_timeout"`
	MaxRetries  int           `mapstructure:"max_retries" json:"max_retries"`
	EvidenceTTL time.Duration `mapstructure:"evidence_ttl" json:"evidence_ttl"`
	PriorTTL    time.Duration `mapstructure:"prior_ttl" json:"prior_ttl"`
	Enabled     bool          `mapstructure:"enabled" json:"enabled"`
}
