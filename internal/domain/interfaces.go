package domain

import (
	"context"
)

// RemotePredictor calls the remote waterfall predictor for one set of metrics
type RemotePredictor interface {
	Predict(ctx context.Context, metrics HealthMetrics) (*RemotePrediction, error)
}

// PredictionCache stores deterministic remote predictions keyed by their metrics
type PredictionCache interface {
	Get(ctx context.Context, metrics HealthMetrics) (*RemotePrediction, bool, error)
	Set(ctx context.Context, metrics HealthMetrics, prediction *RemotePrediction) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetPredictorConfig() *PredictorConfig
	GetCacheConfig() *CacheConfig
	GetLoggingConfig() *LoggingConfig
	Reload() error
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}
