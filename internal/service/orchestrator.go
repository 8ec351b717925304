package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diabetes-risk-server/internal/domain"
)

// Default orchestration timings
const (
	DefaultRemoteTimeout = 8 * time.Second
	DefaultFallbackDelay = time.Second
)

// OrchestratorConfig controls the remote deadline and the simulated latency that
// precedes a fallback result.
type OrchestratorConfig struct {
	RemoteTimeout time.Duration
	FallbackDelay time.Duration
}

// Assessment is a DiagnosisResult together with how it was produced. RemoteErr holds
// the swallowed remote failure when Source is SourceLocalFallback.
type Assessment struct {
	Result    domain.DiagnosisResult
	Source    domain.PredictionSource
	RemoteErr error
}

// PredictionOrchestrator is the entry point for callers that need a diagnosis. It
// tries the remote waterfall predictor and transparently substitutes the local
// fallback scorer on any failure, so a result is always returned.
type PredictionOrchestrator struct {
	remote   domain.RemotePredictor
	fallback *LocalFallbackScorer
	cache    domain.PredictionCache
	config   OrchestratorConfig
	logger   *logrus.Logger
}

// OrchestratorOption is a functional option for PredictionOrchestrator.
type OrchestratorOption func(*PredictionOrchestrator)

// WithPredictionCache consults cache before the remote call and stores successful
// remote predictions in it.
func WithPredictionCache(cache domain.PredictionCache) OrchestratorOption {
	return func(o *PredictionOrchestrator) {
		o.cache = cache
	}
}

// WithOrchestratorConfig overrides the default timings
func WithOrchestratorConfig(cfg OrchestratorConfig) OrchestratorOption {
	return func(o *PredictionOrchestrator) {
		o.config = cfg
	}
}

// NewPredictionOrchestrator creates an orchestrator over a remote predictor and a
// local fallback scorer.
func NewPredictionOrchestrator(
	logger *logrus.Logger,
	remote domain.RemotePredictor,
	fallback *LocalFallbackScorer,
	opts ...OrchestratorOption,
) *PredictionOrchestrator {
	o := &PredictionOrchestrator{
		remote:   remote,
		fallback: fallback,
		logger:   logger,
		config: OrchestratorConfig{
			RemoteTimeout: DefaultRemoteTimeout,
			FallbackDelay: DefaultFallbackDelay,
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Predict returns a diagnosis for validated metrics. It never fails.
func (o *PredictionOrchestrator) Predict(ctx context.Context, metrics domain.HealthMetrics) domain.DiagnosisResult {
	return o.Assess(ctx, metrics).Result
}

// Assess is Predict with the producing strategy attached.
func (o *PredictionOrchestrator) Assess(ctx context.Context, metrics domain.HealthMetrics) Assessment {
	startTime := time.Now()

	if cached, ok := o.lookupCache(ctx, metrics); ok {
		o.logCompletion(domain.SourceCache, cached, startTime)
		return Assessment{Result: cached, Source: domain.SourceCache}
	}

	prediction, err := o.callRemote(ctx, metrics)
	if err == nil {
		o.storeCache(ctx, metrics, prediction)
		result := reshape(prediction)
		o.logCompletion(domain.SourceRemote, result, startTime)
		return Assessment{Result: result, Source: domain.SourceRemote}
	}

	o.logger.WithError(err).WithField("fallback_delay", o.config.FallbackDelay).
		Warn("Remote predictor unavailable, using local fallback scorer")

	o.waitFallbackDelay(ctx)

	result := o.fallback.Score(metrics)
	o.logCompletion(domain.SourceLocalFallback, result, startTime)
	return Assessment{Result: result, Source: domain.SourceLocalFallback, RemoteErr: err}
}

// callRemote performs the single outbound call and rejects malformed results
func (o *PredictionOrchestrator) callRemote(ctx context.Context, metrics domain.HealthMetrics) (*domain.RemotePrediction, error) {
	if o.remote == nil {
		return nil, domain.NewTransportError("predict", 0, "no remote predictor configured", nil)
	}

	callCtx := ctx
	if o.config.RemoteTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.config.RemoteTimeout)
		defer cancel()
	}

	prediction, err := o.remote.Predict(callCtx, metrics)
	if err != nil {
		return nil, fmt.Errorf("remote prediction failed: %w", err)
	}
	if prediction == nil {
		return nil, domain.NewTransportError("predict", 0, "empty prediction", domain.ErrMalformedResponse)
	}
	if err := prediction.DiagnosisResult.Validate(); err != nil {
		return nil, domain.NewTransportError("predict", 0, err.Error(), domain.ErrMalformedResponse)
	}
	return prediction, nil
}

func (o *PredictionOrchestrator) lookupCache(ctx context.Context, metrics domain.HealthMetrics) (domain.DiagnosisResult, bool) {
	if o.cache == nil {
		return domain.DiagnosisResult{}, false
	}
	cached, found, err := o.cache.Get(ctx, metrics)
	if err != nil {
		o.logger.WithError(err).Warn("Prediction cache lookup failed")
		return domain.DiagnosisResult{}, false
	}
	if !found || cached == nil || cached.DiagnosisResult.Validate() != nil {
		return domain.DiagnosisResult{}, false
	}
	return reshape(cached), true
}

func (o *PredictionOrchestrator) storeCache(ctx context.Context, metrics domain.HealthMetrics, prediction *domain.RemotePrediction) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Set(ctx, metrics, prediction); err != nil {
		// Log cache error but don't fail the request
		o.logger.WithError(err).Warn("Failed to cache remote prediction")
	}
}

// waitFallbackDelay blocks for the configured delay unless ctx ends first
func (o *PredictionOrchestrator) waitFallbackDelay(ctx context.Context) {
	if o.config.FallbackDelay <= 0 {
		return
	}
	timer := time.NewTimer(o.config.FallbackDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (o *PredictionOrchestrator) logCompletion(source domain.PredictionSource, result domain.DiagnosisResult, startTime time.Time) {
	o.logger.WithFields(logrus.Fields{
		"source":          source,
		"is_diabetic":     result.IsDiabetic,
		"confidence":      result.Confidence,
		"diabetes_type":   result.DiabetesType.String(),
		"processing_time": time.Since(startTime),
	}).Info("Prediction completed")
}

// reshape drops the per-stage breakdown and normalizes the risk factor list
func reshape(p *domain.RemotePrediction) domain.DiagnosisResult {
	result := p.DiagnosisResult
	if result.RiskFactors == nil || !result.IsDiabetic {
		result.RiskFactors = []string{}
	} else {
		result.RiskFactors = append([]string(nil), result.RiskFactors...)
	}
	return result
}
