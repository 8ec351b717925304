// Package bootstrap assembles the prediction pipeline from configuration.
package bootstrap

import (
	"github.com/sirupsen/logrus"

	"github.com/diabetes-risk-server/internal/domain"
	"github.com/diabetes-risk-server/internal/service"
	"github.com/diabetes-risk-server/pkg/external"
)

// Pipeline is a ready-to-use orchestrator plus the resources it owns
type Pipeline struct {
	Orchestrator *service.PredictionOrchestrator
	Client       *external.PredictorClient
	Cache        *external.PredictionCache
}

// Options adjusts how the pipeline is assembled
type Options struct {
	// InProcess evaluates the waterfall locally instead of calling the remote service
	InProcess bool
	// DisableCache skips the prediction cache regardless of configuration
	DisableCache bool
	// Jitter overrides the fallback scorer's randomness
	Jitter service.JitterSource
}

// NewPipeline wires the remote client, the prediction cache and the local
// fallback scorer into an orchestrator. An unreachable Redis degrades the cache
// to its in-memory tier rather than failing.
func NewPipeline(config *domain.Config, logger *logrus.Logger, opts Options) (*Pipeline, error) {
	pipeline := &Pipeline{}

	var remote domain.RemotePredictor
	if opts.InProcess {
		remote = service.NewWaterfallPredictor(logger)
	} else {
		pipeline.Client = external.NewPredictorClient(config.Predictor, logger)
		remote = pipeline.Client
		logger.WithField("endpoint", pipeline.Client.Endpoint()).Info("Using remote predictor")
	}

	var fallbackOpts []service.LocalFallbackOption
	if opts.Jitter != nil {
		fallbackOpts = append(fallbackOpts, service.WithJitterSource(opts.Jitter))
	}
	fallback := service.NewLocalFallbackScorer(logger, fallbackOpts...)

	orchestratorOpts := []service.OrchestratorOption{
		service.WithOrchestratorConfig(service.OrchestratorConfig{
			RemoteTimeout: config.Predictor.Timeout,
			FallbackDelay: config.Predictor.FallbackDelay,
		}),
	}

	if config.Cache.Enabled && !opts.DisableCache {
		cache, err := newCache(config.Cache, logger)
		if err != nil {
			return nil, err
		}
		pipeline.Cache = cache
		orchestratorOpts = append(orchestratorOpts, service.WithPredictionCache(cache))
	}

	pipeline.Orchestrator = service.NewPredictionOrchestrator(logger, remote, fallback, orchestratorOpts...)
	return pipeline, nil
}

func newCache(config domain.CacheConfig, logger *logrus.Logger) (*external.PredictionCache, error) {
	cache, err := external.NewPredictionCache(config, logger)
	if err == nil || config.RedisURL == "" {
		return cache, err
	}

	logger.WithError(err).Warn("Redis unavailable, prediction cache limited to memory")
	config.RedisURL = ""
	return external.NewPredictionCache(config, logger)
}

// Close releases resources held by the pipeline
func (p *Pipeline) Close() error {
	if p.Cache != nil {
		return p.Cache.Close()
	}
	return nil
}
