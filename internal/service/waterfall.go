package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/diabetes-risk-server/internal/domain"
)

// WaterfallPredictor runs the four-stage scoring cascade: glucose screening,
// metabolic assessment and demographic risk on the same metrics, then the ensemble
// combiner. It holds no state between calls and is deterministic.
type WaterfallPredictor struct {
	logger *logrus.Logger
	bounds domain.MetricBounds
}

// NewWaterfallPredictor creates a predictor that validates against the remote bounds
func NewWaterfallPredictor(logger *logrus.Logger) *WaterfallPredictor {
	return &WaterfallPredictor{
		logger: logger,
		bounds: domain.RemoteBounds,
	}
}

// Predict validates the metrics and runs the cascade. It implements
// domain.RemotePredictor so the cascade can also be used in-process.
func (w *WaterfallPredictor) Predict(ctx context.Context, metrics domain.HealthMetrics) (*domain.RemotePrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := domain.ValidateMetrics(metrics, w.bounds); err != nil {
		return nil, fmt.Errorf("invalid metrics: %w", err)
	}
	return w.Evaluate(metrics), nil
}

// Evaluate runs the cascade on metrics that have already been validated.
func (w *WaterfallPredictor) Evaluate(metrics domain.HealthMetrics) *domain.RemotePrediction {
	glucose := ScreenGlucose(metrics.Glucose)
	metabolic := AssessMetabolic(metrics)
	demographic := AssessDemographic(metrics)

	w.logger.WithFields(logrus.Fields{
		"stage1_glucose_screening":    glucose.Score,
		"stage2_metabolic_assessment": metabolic.Score,
		"stage3_demographic_risk":     demographic.Score,
	}).Debug("Evaluated waterfall stages")

	outcome := CombineStages(glucose, metabolic, demographic)

	w.logger.WithFields(logrus.Fields{
		"is_diabetic":   outcome.Result.IsDiabetic,
		"confidence":    outcome.Result.Confidence,
		"diabetes_type": outcome.Result.DiabetesType.String(),
		"risk_factors":  len(outcome.Result.RiskFactors),
	}).Info("Completed waterfall prediction")

	return &domain.RemotePrediction{
		DiagnosisResult: outcome.Result,
		ModelStages: domain.ModelStages{
			GlucoseScreening:    glucose.Score,
			MetabolicAssessment: metabolic.Score,
			DemographicRisk:     demographic.Score,
			EnsemblePrediction:  outcome.Score,
		},
	}
}
