package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/diabetes-risk-server/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g.
// DIABETES_RISK_PREDICTOR_BASE_URL.
const EnvPrefix = "DIABETES_RISK"

// DefaultConfigPaths are searched for config.yaml in order
var DefaultConfigPaths = []string{".", "./config", "/etc/diabetes-risk-server/"}

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	paths  []string
	config *domain.Config
}

// NewManager creates a new configuration manager reading the default paths
func NewManager() (*Manager, error) {
	return NewManagerWithPaths(DefaultConfigPaths...)
}

// NewManagerWithPaths creates a configuration manager that looks for config.yaml
// only in the given directories.
func NewManagerWithPaths(paths ...string) (*Manager, error) {
	m := &Manager{paths: paths}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from defaults, the config file and the environment
func (m *Manager) loadConfig() error {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range m.paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; defaults and environment variables still apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "10s")
	v.SetDefault("server.cors_allowed_origin", "*")

	// Remote predictor defaults
	v.SetDefault("predictor.base_url", "http://localhost:8080")
	v.SetDefault("predictor.path", "/api/v1/predict")
	v.SetDefault("predictor.timeout", "8s")
	v.SetDefault("predictor.fallback_delay", "1s")
	v.SetDefault("predictor.rate_limit", 20)
	v.SetDefault("predictor.burst", 5)
	v.SetDefault("predictor.breaker_max_requests", 3)
	v.SetDefault("predictor.breaker_interval", "30s")
	v.SetDefault("predictor.breaker_timeout", "60s")
	v.SetDefault("predictor.breaker_min_requests", 3)
	v.SetDefault("predictor.breaker_failure_ratio", 0.6)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "1h")
	v.SetDefault("cache.memory_items", 1024)
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// MCP defaults
	v.SetDefault("mcp.server_name", "diabetes-risk-mcp")
	v.SetDefault("mcp.server_version", "v0.1.0")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetPredictorConfig returns remote predictor configuration
func (m *Manager) GetPredictorConfig() *domain.PredictorConfig {
	return &m.config.Predictor
}

// GetCacheConfig returns prediction cache configuration
func (m *Manager) GetCacheConfig() *domain.CacheConfig {
	return &m.config.Cache
}

// GetLoggingConfig returns logging configuration
func (m *Manager) GetLoggingConfig() *domain.LoggingConfig {
	return &m.config.Logging
}

// GetMCPConfig returns MCP server configuration
func (m *Manager) GetMCPConfig() *domain.MCPConfig {
	return &m.config.MCP
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Server
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.ReadTimeout <= 0 || config.Server.WriteTimeout <= 0 || config.Server.IdleTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if config.Server.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request timeout: %s", config.Server.RequestTimeout)
	}

	// Remote predictor
	if config.Predictor.BaseURL == "" {
		return fmt.Errorf("predictor base URL is required")
	}
	if config.Predictor.Timeout <= 0 {
		return fmt.Errorf("invalid predictor timeout: %s", config.Predictor.Timeout)
	}
	if config.Predictor.FallbackDelay < 0 {
		return fmt.Errorf("invalid fallback delay: %s", config.Predictor.FallbackDelay)
	}
	if config.Predictor.RateLimit <= 0 || config.Predictor.Burst <= 0 {
		return fmt.Errorf("predictor rate limit and burst must be positive")
	}
	if config.Predictor.BreakerFailureRatio <= 0 || config.Predictor.BreakerFailureRatio > 1 {
		return fmt.Errorf("invalid breaker failure ratio: %v", config.Predictor.BreakerFailureRatio)
	}

	// Cache
	if config.Cache.Enabled && config.Cache.MemoryItems <= 0 {
		return fmt.Errorf("cache memory items must be positive")
	}
	if config.Cache.Enabled && config.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("invalid cache TTL: %s", config.Cache.DefaultTTL)
	}

	// Logging
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	switch strings.ToLower(config.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
