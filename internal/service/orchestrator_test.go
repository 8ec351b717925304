package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/diabetes-risk-server/internal/domain"
)

// MockRemotePredictor is a mock implementation of domain.RemotePredictor
type MockRemotePredictor struct {
	mock.Mock
}

func (m *MockRemotePredictor) Predict(ctx context.Context, metrics domain.HealthMetrics) (*domain.RemotePrediction, error) {
	args := m.Called(ctx, metrics)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RemotePrediction), args.Error(1)
}

// predictorFunc adapts a function to domain.RemotePredictor
type predictorFunc func(ctx context.Context, metrics domain.HealthMetrics) (*domain.RemotePrediction, error)

func (f predictorFunc) Predict(ctx context.Context, metrics domain.HealthMetrics) (*domain.RemotePrediction, error) {
	return f(ctx, metrics)
}

// memoryCache is an in-memory domain.PredictionCache
type memoryCache struct {
	mu      sync.Mutex
	entries map[domain.HealthMetrics]*domain.RemotePrediction
	sets    int
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[domain.HealthMetrics]*domain.RemotePrediction)}
}

func (c *memoryCache) Get(_ context.Context, metrics domain.HealthMetrics) (*domain.RemotePrediction, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	p, ok := c.entries[metrics]
	return p, ok, nil
}

func (c *memoryCache) Set(_ context.Context, metrics domain.HealthMetrics, prediction *domain.RemotePrediction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[metrics] = prediction
	c.sets++
	return nil
}

var orchestratorMetrics = domain.HealthMetrics{
	Age: 25, Gender: domain.GenderOther, Glucose: 200, BloodPressure: 85, BMI: 31, Insulin: 5,
}

func remotePrediction() *domain.RemotePrediction {
	return &domain.RemotePrediction{
		DiagnosisResult: domain.DiagnosisResult{
			IsDiabetic:   true,
			Confidence:   0.83,
			DiabetesType: domain.DiabetesType2,
			RiskFactors:  []string{"Severely elevated glucose"},
		},
		ModelStages: domain.ModelStages{
			GlucoseScreening:    0.95,
			MetabolicAssessment: 0.7,
			DemographicRisk:     0.3,
			EnsemblePrediction:  0.745,
		},
	}
}

func newTestOrchestrator(remote domain.RemotePredictor, delay time.Duration, opts ...OrchestratorOption) *PredictionOrchestrator {
	fallback := NewLocalFallbackScorer(newTestLogger(), WithJitterSource(FixedJitter(0.5)))
	opts = append([]OrchestratorOption{WithOrchestratorConfig(OrchestratorConfig{
		RemoteTimeout: 200 * time.Millisecond,
		FallbackDelay: delay,
	})}, opts...)
	return NewPredictionOrchestrator(newTestLogger(), remote, fallback, opts...)
}

func TestPredictionOrchestrator_RemoteSuccess(t *testing.T) {
	remote := new(MockRemotePredictor)
	remote.On("Predict", mock.Anything, orchestratorMetrics).Return(remotePrediction(), nil).Once()

	orchestrator := newTestOrchestrator(remote, 0)
	assessment := orchestrator.Assess(context.Background(), orchestratorMetrics)

	assert.Equal(t, domain.SourceRemote, assessment.Source)
	assert.NoError(t, assessment.RemoteErr)
	assert.Equal(t, remotePrediction().DiagnosisResult, assessment.Result)
	remote.AssertExpectations(t)
}

func TestPredictionOrchestrator_RemoteFailureUsesFallback(t *testing.T) {
	tests := []struct {
		name       string
		prediction *domain.RemotePrediction
		err        error
		malformed  bool
	}{
		{
			name: "Transport error",
			err:  domain.NewTransportError("predict", 503, "service unavailable", nil),
		},
		{
			name:      "Nil prediction",
			malformed: true,
		},
		{
			name: "Confidence out of range",
			prediction: &domain.RemotePrediction{DiagnosisResult: domain.DiagnosisResult{
				IsDiabetic: true, Confidence: 1.7, DiabetesType: domain.DiabetesType2, RiskFactors: []string{"x"},
			}},
			malformed: true,
		},
		{
			name: "Positive without subtype",
			prediction: &domain.RemotePrediction{DiagnosisResult: domain.DiagnosisResult{
				IsDiabetic: true, Confidence: 0.7, RiskFactors: []string{"x"},
			}},
			malformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := new(MockRemotePredictor)
			remote.On("Predict", mock.Anything, orchestratorMetrics).Return(tt.prediction, tt.err).Once()

			orchestrator := newTestOrchestrator(remote, 0)
			assessment := orchestrator.Assess(context.Background(), orchestratorMetrics)

			assert.Equal(t, domain.SourceLocalFallback, assessment.Source)
			require.Error(t, assessment.RemoteErr)
			assert.True(t, domain.IsTransportError(assessment.RemoteErr))
			if tt.malformed {
				assert.ErrorIs(t, assessment.RemoteErr, domain.ErrMalformedResponse)
			}

			// Fallback result for these metrics with zero jitter
			assert.InDelta(t, 0.7, assessment.Result.Confidence, 1e-9)
			assert.True(t, assessment.Result.IsDiabetic)
			assert.Equal(t, domain.DiabetesType1, assessment.Result.DiabetesType)
			remote.AssertExpectations(t)
		})
	}
}

func TestPredictionOrchestrator_FallbackDelay(t *testing.T) {
	remote := predictorFunc(func(ctx context.Context, _ domain.HealthMetrics) (*domain.RemotePrediction, error) {
		return nil, errors.New("connection refused")
	})

	orchestrator := newTestOrchestrator(remote, 50*time.Millisecond)

	start := time.Now()
	result := orchestrator.Predict(context.Background(), orchestratorMetrics)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.True(t, result.IsDiabetic)
}

func TestPredictionOrchestrator_RemoteTimeout(t *testing.T) {
	var deadlineSet bool
	remote := predictorFunc(func(ctx context.Context, _ domain.HealthMetrics) (*domain.RemotePrediction, error) {
		_, deadlineSet = ctx.Deadline()
		<-ctx.Done()
		return nil, domain.NewTransportError("predict", 0, "", ctx.Err())
	})

	orchestrator := newTestOrchestrator(remote, 0)

	start := time.Now()
	assessment := orchestrator.Assess(context.Background(), orchestratorMetrics)

	assert.True(t, deadlineSet)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, domain.SourceLocalFallback, assessment.Source)
	assert.ErrorIs(t, assessment.RemoteErr, context.DeadlineExceeded)
}

func TestPredictionOrchestrator_CancelledContextSkipsDelay(t *testing.T) {
	remote := predictorFunc(func(ctx context.Context, _ domain.HealthMetrics) (*domain.RemotePrediction, error) {
		return nil, ctx.Err()
	})

	orchestrator := newTestOrchestrator(remote, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assessment := orchestrator.Assess(ctx, orchestratorMetrics)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domain.SourceLocalFallback, assessment.Source)
	assert.True(t, assessment.Result.IsDiabetic)
}

func TestPredictionOrchestrator_NilRemote(t *testing.T) {
	orchestrator := newTestOrchestrator(nil, 0)

	assessment := orchestrator.Assess(context.Background(), orchestratorMetrics)

	assert.Equal(t, domain.SourceLocalFallback, assessment.Source)
	assert.True(t, domain.IsTransportError(assessment.RemoteErr))
}

func TestPredictionOrchestrator_Cache(t *testing.T) {
	t.Run("Successful remote prediction is stored", func(t *testing.T) {
		cache := newMemoryCache()
		remote := new(MockRemotePredictor)
		remote.On("Predict", mock.Anything, orchestratorMetrics).Return(remotePrediction(), nil).Once()

		orchestrator := newTestOrchestrator(remote, 0, WithPredictionCache(cache))

		first := orchestrator.Assess(context.Background(), orchestratorMetrics)
		second := orchestrator.Assess(context.Background(), orchestratorMetrics)

		assert.Equal(t, domain.SourceRemote, first.Source)
		assert.Equal(t, domain.SourceCache, second.Source)
		assert.Equal(t, first.Result, second.Result)
		assert.Equal(t, 1, cache.sets)
		remote.AssertExpectations(t)
	})

	t.Run("Fallback results are never stored", func(t *testing.T) {
		cache := newMemoryCache()
		remote := new(MockRemotePredictor)
		remote.On("Predict", mock.Anything, orchestratorMetrics).
			Return(nil, domain.NewTransportError("predict", 500, "boom", nil)).Twice()

		orchestrator := newTestOrchestrator(remote, 0, WithPredictionCache(cache))
		orchestrator.Assess(context.Background(), orchestratorMetrics)
		second := orchestrator.Assess(context.Background(), orchestratorMetrics)

		assert.Equal(t, domain.SourceLocalFallback, second.Source)
		assert.Equal(t, 0, cache.sets)
		remote.AssertExpectations(t)
	})

	t.Run("Cache errors fall through to the remote", func(t *testing.T) {
		cache := newMemoryCache()
		cache.getErr = errors.New("redis: connection pool timeout")
		remote := new(MockRemotePredictor)
		remote.On("Predict", mock.Anything, orchestratorMetrics).Return(remotePrediction(), nil).Once()

		orchestrator := newTestOrchestrator(remote, 0, WithPredictionCache(cache))
		assessment := orchestrator.Assess(context.Background(), orchestratorMetrics)

		assert.Equal(t, domain.SourceRemote, assessment.Source)
		remote.AssertExpectations(t)
	})
}

func TestPredictionOrchestrator_NegativeRemoteResultHasEmptyFactors(t *testing.T) {
	remote := predictorFunc(func(context.Context, domain.HealthMetrics) (*domain.RemotePrediction, error) {
		return &domain.RemotePrediction{DiagnosisResult: domain.DiagnosisResult{Confidence: 0.1}}, nil
	})

	result := newTestOrchestrator(remote, 0).Predict(context.Background(), orchestratorMetrics)

	assert.False(t, result.IsDiabetic)
	assert.NotNil(t, result.RiskFactors)
	assert.Empty(t, result.RiskFactors)
}
