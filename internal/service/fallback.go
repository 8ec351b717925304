package service

import (
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/diabetes-risk-server/internal/domain"
)

// JitterSource yields uniform values in [0,1). *rand.Rand satisfies it.
type JitterSource interface {
	Float64() float64
}

// globalSource draws from the process-wide generator, which is safe for
// concurrent use.
type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// FixedJitter always returns the same draw. FixedJitter(0.5) yields zero jitter.
type FixedJitter float64

// Float64 implements JitterSource
func (f FixedJitter) Float64() float64 { return float64(f) }

// maxJitter bounds the confidence noise to ±0.05
const maxJitter = 0.05

const (
	fallbackHighGlucoseFactor     = "High glucose level (≥126 mg/dL)"
	fallbackElevatedGlucoseFactor = "Elevated glucose level (≥100 mg/dL)"
	fallbackObesityFactor         = "Obesity (BMI ≥30)"
	fallbackOverweightFactor      = "Overweight (BMI ≥25)"
	fallbackAgeFactor             = "Age 45 or older"
	fallbackBloodPressureFactor   = "High blood pressure (≥90 mmHg)"
	fallbackInsulinFactor         = "Abnormal insulin level"
	fallbackMaleFactor            = "Male with elevated BMI"
	fallbackFemaleFactor          = "Female over 35 with elevated BMI"
)

// LocalFallbackScorer is a single-pass weighted-sum classifier used when the remote
// predictor is unavailable. It is intentionally coarser than the waterfall and adds
// bounded random jitter to its confidence.
type LocalFallbackScorer struct {
	logger *logrus.Logger
	jitter JitterSource
}

// LocalFallbackOption is a functional option for LocalFallbackScorer.
type LocalFallbackOption func(*LocalFallbackScorer)

// WithJitterSource replaces the production randomness, e.g. with a seeded
// *rand.Rand or a FixedJitter in tests.
func WithJitterSource(src JitterSource) LocalFallbackOption {
	return func(s *LocalFallbackScorer) {
		s.jitter = src
	}
}

// NewLocalFallbackScorer creates a fallback scorer
func NewLocalFallbackScorer(logger *logrus.Logger, opts ...LocalFallbackOption) *LocalFallbackScorer {
	s := &LocalFallbackScorer{
		logger: logger,
		jitter: globalSource{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BaseScore computes the pre-jitter score and the triggered factors
func (s *LocalFallbackScorer) BaseScore(m domain.HealthMetrics) (float64, []string) {
	score := 0.0
	factors := []string{}

	switch {
	case m.Glucose >= 126:
		score += 0.4
		factors = append(factors, fallbackHighGlucoseFactor)
	case m.Glucose >= 100:
		score += 0.2
		factors = append(factors, fallbackElevatedGlucoseFactor)
	}

	switch {
	case m.BMI >= 30:
		score += 0.25
		factors = append(factors, fallbackObesityFactor)
	case m.BMI >= 25:
		score += 0.15
		factors = append(factors, fallbackOverweightFactor)
	}

	switch {
	case m.Age >= 45:
		score += 0.15
		factors = append(factors, fallbackAgeFactor)
	case m.Age >= 35:
		score += 0.1
	}

	switch {
	case m.BloodPressure >= 90:
		score += 0.1
		factors = append(factors, fallbackBloodPressureFactor)
	case m.BloodPressure >= 80:
		score += 0.05
	}

	if m.Insulin > 25 || m.Insulin < 2 {
		score += 0.1
		factors = append(factors, fallbackInsulinFactor)
	}

	if m.Gender == domain.GenderMale && m.BMI > 28 {
		score += 0.05
		factors = append(factors, fallbackMaleFactor)
	}
	if m.Gender == domain.GenderFemale && m.Age > 35 && m.BMI > 25 {
		score += 0.03
		factors = append(factors, fallbackFemaleFactor)
	}

	// combined high-risk pattern, stacks on the individual rules
	if m.Glucose > 140 && m.BMI > 25 && m.Age > 40 {
		score += 0.1
	}

	return clampMax(score, 1.0), factors
}

// Score classifies metrics that were validated upstream. It never fails.
func (s *LocalFallbackScorer) Score(m domain.HealthMetrics) domain.DiagnosisResult {
	score, factors := s.BaseScore(m)

	jitter := (s.jitter.Float64() - 0.5) * 2 * maxJitter
	confidence := clampMin(clampMax(score+jitter, 1.0), domain.MinConfidence)

	result := domain.DiagnosisResult{
		IsDiabetic:   confidence > diabeticThreshold,
		Confidence:   confidence,
		DiabetesType: domain.DiabetesTypeNone,
		RiskFactors:  []string{},
	}

	if result.IsDiabetic {
		if m.Age < 30 && m.Insulin < 10 {
			result.DiabetesType = domain.DiabetesType1
		} else {
			result.DiabetesType = domain.DiabetesType2
		}
		result.RiskFactors = factors
	}

	s.logger.WithFields(logrus.Fields{
		"base_score":    score,
		"confidence":    result.Confidence,
		"is_diabetic":   result.IsDiabetic,
		"diabetes_type": result.DiabetesType.String(),
	}).Debug("Computed local fallback prediction")

	return result
}
