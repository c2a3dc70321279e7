// Package config loads and validates the engine's configuration from file,
// environment and defaults via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/onco-efficacy-engine/internal/domain"
)

// Config is the full application configuration.
type Config struct {
	Environment string             `mapstructure:"environment"`
	Server      ServerConfig       `mapstructure:"server"`
	Database    DatabaseConfig     `mapstructure:"database"`
	Calibration CalibrationConfig  `mapstructure:"calibration"`
	Scoring     ScoringConfig      `mapstructure:"scoring"`
	Upstream    UpstreamConfig     `mapstructure:"upstream"`
	Cache       domain.CacheConfig `mapstructure:"cache"`
	Pipeline    PipelineConfig     `mapstructure:"pipeline"`
	Logging     LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings for the calibration
// snapshot store.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// CalibrationConfig selects and tunes the calibration snapshot store.
type CalibrationConfig struct {
	// Backend is "postgres", "sqlite" or "none".
	Backend    string        `mapstructure:"backend"`
	SQLitePath string        `mapstructure:"sqlite_path"`
	CacheSize  int           `mapstructure:"cache_size"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// ScoringConfig locates the scoring tables file. An empty path uses the
// built-in defaults.
type ScoringConfig struct {
	TablesPath string `mapstructure:"tables_path"`
}

// UpstreamConfig groups the collaborator service clients.
type UpstreamConfig struct {
	Scorer         domain.SequenceScorerConfig `mapstructure:"scorer"`
	EnhancedScorer domain.SequenceScorerConfig `mapstructure:"enhanced_scorer"`
	Evidence       domain.EvidenceConfig       `mapstructure:"evidence"`
	Clinical       domain.ClinicalDBConfig     `mapstructure:"clinical"`
	Insights       domain.InsightsConfig       `mapstructure:"insights"`
}

// PipelineConfig tunes per-request pipeline behavior.
type PipelineConfig struct {
	FanoutTimeout time.Duration `mapstructure:"fanout_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Manager loads and exposes the configuration.
type Manager struct {
	config *Config
}

// NewManager creates a configuration manager, loading from config files,
// environment variables (ONCO_EFFICACY_ prefix) and defaults.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/onco-efficacy-engine/")

	viper.SetEnvPrefix("ONCO_EFFICACY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; defaults and environment variables apply.
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	viper.SetDefault("environment", "development")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "onco_efficacy")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_conns", 25)
	viper.SetDefault("database.min_conns", 2)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.conn_max_idle_time", "1m")
	viper.SetDefault("database.migrations_path", "migrations")

	viper.SetDefault("calibration.backend", "sqlite")
	viper.SetDefault("calibration.sqlite_path", "data/calibration.db")
	viper.SetDefault("calibration.cache_size", 2048)
	viper.SetDefault("calibration.cache_ttl", "10m")

	viper.SetDefault("scoring.tables_path", "")

	viper.SetDefault("upstream.scorer.base_url", "http://localhost:9101")
	viper.SetDefault("upstream.scorer.timeout", "30s")
	viper.SetDefault("upstream.scorer.rate_limit", 20)
	viper.SetDefault("upstream.enhanced_scorer.base_url", "http://localhost:9102")
	viper.SetDefault("upstream.enhanced_scorer.timeout", "60s")
	viper.SetDefault("upstream.enhanced_scorer.rate_limit", 5)
	viper.SetDefault("upstream.enhanced_scorer.enabled", false)
	viper.SetDefault("upstream.evidence.base_url", "http://localhost:9103")
	viper.SetDefault("upstream.evidence.timeout", "30s")
	viper.SetDefault("upstream.evidence.rate_limit", 10)
	viper.SetDefault("upstream.clinical.base_url", "http://localhost:9104")
	viper.SetDefault("upstream.clinical.timeout", "30s")
	viper.SetDefault("upstream.clinical.rate_limit", 3)
	viper.SetDefault("upstream.insights.base_url", "http://localhost:9105")
	viper.SetDefault("upstream.insights.timeout", "30s")
	viper.SetDefault("upstream.insights.rate_limit", 10)

	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.evidence_ttl", "3m")
	viper.SetDefault("cache.prior_ttl", "15m")

	viper.SetDefault("pipeline.fanout_timeout", "30s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the loaded configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Validate checks the loaded configuration for fatal gaps.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Calibration.Backend {
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required for the postgres calibration backend")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required for the postgres calibration backend")
		}
	case "sqlite":
		if config.Calibration.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for the sqlite calibration backend")
		}
	case "none":
	default:
		return fmt.Errorf("unknown calibration backend: %s", config.Calibration.Backend)
	}

	if config.Upstream.Scorer.BaseURL == "" {
		return fmt.Errorf("sequence scorer base URL is required")
	}
	if config.Upstream.Evidence.BaseURL == "" {
		return fmt.Errorf("evidence provider base URL is required")
	}
	if config.Upstream.Clinical.BaseURL == "" {
		return fmt.Errorf("clinical-variant database base URL is required")
	}
	if config.Upstream.Insights.BaseURL == "" {
		return fmt.Errorf("insights provider base URL is required")
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when the cache is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection URL, used by both the
// connection pool and the migration runner.
func (m *Manager) DatabaseURL() string {
	db := m.config.Database
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.Username, db.Password, db.Host, db.Port, db.Database, db.SSLMode)
}

// IsProduction reports whether the engine runs in production mode.
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}
