package service

import (
	"math"

	"github.com/diabetes-risk-server/internal/domain"
)

// Ensemble weights per stage
const (
	glucoseWeight     = 0.5
	metabolicWeight   = 0.3
	demographicWeight = 0.2
)

const (
	// disagreementScale converts the stage variance into a confidence penalty
	disagreementScale = 0.1
	// maxDisagreementPenalty caps the penalty
	maxDisagreementPenalty = 0.2
	// diabeticThreshold is exclusive: a score must exceed it
	diabeticThreshold = 0.5
	// type1DemographicCeiling and type1MetabolicFloor bound the Type 1 pattern:
	// low demographic risk with marked metabolic disturbance
	type1DemographicCeiling = 0.2
	type1MetabolicFloor     = 0.3
)

// EnsembleOutcome is the result of combining the three stage scores
type EnsembleOutcome struct {
	Score  float64
	Result domain.DiagnosisResult
}

// CombineStages merges the glucose, metabolic and demographic stage scores into the
// final score, calibrated confidence, classification and subtype.
//
// Risk factors are concatenated in stage order and exposed only for a positive
// classification.
func CombineStages(glucose, metabolic, demographic domain.StageScore) EnsembleOutcome {
	g, m, d := glucose.Score, metabolic.Score, demographic.Score

	score := glucoseWeight*g + metabolicWeight*m + demographicWeight*d

	variance := math.Pow(g-score, 2) + math.Pow(m-score, 2) + math.Pow(d-score, 2)
	penalty := math.Min(disagreementScale*variance, maxDisagreementPenalty)
	confidence := clampMin(score-penalty, domain.MinConfidence)

	result := domain.DiagnosisResult{
		IsDiabetic:   score > diabeticThreshold,
		Confidence:   confidence,
		DiabetesType: domain.DiabetesTypeNone,
		RiskFactors:  []string{},
	}

	if result.IsDiabetic {
		if d < type1DemographicCeiling && m > type1MetabolicFloor {
			result.DiabetesType = domain.DiabetesType1
		} else {
			result.DiabetesType = domain.DiabetesType2
		}

		factors := make([]string, 0, len(glucose.Factors)+len(metabolic.Factors)+len(demographic.Factors))
		factors = append(factors, glucose.Factors...)
		factors = append(factors, metabolic.Factors...)
		factors = append(factors, demographic.Factors...)
		result.RiskFactors = factors
	}

	return EnsembleOutcome{Score: score, Result: result}
}
