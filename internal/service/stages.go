package service

import (
	"github.com/diabetes-risk-server/internal/domain"
)

// tier is one rung of a threshold ladder. Ladders are ordered high-to-low and the
// first rung whose threshold is met wins.
type tier struct {
	threshold float64
	score     float64
	factor    string
}

// firstTier returns the first rung of ladder with v >= threshold
func firstTier(v float64, ladder []tier) (tier, bool) {
	for _, t := range ladder {
		if v >= t.threshold {
			return t, true
		}
	}
	return tier{}, false
}

var glucoseLadder = []tier{
	{200, 0.95, "Severely elevated glucose (≥200 mg/dL): immediate diabetes indicator"},
	{126, 0.80, "Fasting glucose at or above the diabetes threshold (≥126 mg/dL)"},
	{100, 0.40, "Impaired fasting glucose (100-125 mg/dL): pre-diabetes range"},
	{90, 0.20, "Borderline glucose (90-99 mg/dL)"},
}

// glucoseBaseline is scored when no glucose rung matches. It emits no factor.
const glucoseBaseline = 0.10

var bmiLadder = []tier{
	{35, 0.40, "Severe obesity (BMI ≥35)"},
	{30, 0.30, "Obesity (BMI 30-34.9)"},
	{25, 0.20, "Overweight (BMI 25-29.9)"},
}

var bloodPressureLadder = []tier{
	{90, 0.25, "High diastolic blood pressure (≥90 mmHg)"},
	{85, 0.15, "Elevated diastolic blood pressure (85-89 mmHg)"},
}

const (
	insulinHighFactor     = "Hyperinsulinemia: insulin resistance indicator (>25 µU/mL)"
	insulinLowFactor      = "Very low insulin: possible beta-cell dysfunction (<2 µU/mL)"
	insulinElevatedFactor = "Elevated insulin (>15 µU/mL)"
)

var ageLadder = []tier{
	{65, 0.30, "Age 65 or older: highest age-related risk"},
	{45, 0.25, "Age 45-64: increased age-related risk"},
	{35, 0.15, "Age 35-44: moderate age-related risk"},
}

const (
	maleBMIFactor   = "Male with BMI above 27: elevated metabolic risk"
	femaleBMIFactor = "Female over 35 with BMI above 25: elevated metabolic risk"
)

// ScreenGlucose scores the primary biomarker on a single tier ladder.
func ScreenGlucose(glucose float64) domain.StageScore {
	if t, ok := firstTier(glucose, glucoseLadder); ok {
		return domain.StageScore{Score: t.score, Factors: []string{t.factor}}
	}
	return domain.StageScore{Score: glucoseBaseline, Factors: []string{}}
}

// AssessMetabolic scores BMI, blood pressure and insulin. Each input contributes its
// own highest matching rung; contributions add up and are clamped to 1.
func AssessMetabolic(m domain.HealthMetrics) domain.StageScore {
	stage := domain.StageScore{Factors: []string{}}

	if t, ok := firstTier(m.BMI, bmiLadder); ok {
		stage.Score += t.score
		stage.Factors = append(stage.Factors, t.factor)
	}

	if t, ok := firstTier(m.BloodPressure, bloodPressureLadder); ok {
		stage.Score += t.score
		stage.Factors = append(stage.Factors, t.factor)
	}

	switch {
	case m.Insulin > 25:
		stage.Score += 0.30
		stage.Factors = append(stage.Factors, insulinHighFactor)
	case m.Insulin < 2:
		stage.Score += 0.35
		stage.Factors = append(stage.Factors, insulinLowFactor)
	case m.Insulin > 15:
		stage.Score += 0.15
		stage.Factors = append(stage.Factors, insulinElevatedFactor)
	}

	stage.Score = clampMax(stage.Score, 1.0)
	return stage
}

// AssessDemographic scores age and the gender-conditioned BMI adjustment.
func AssessDemographic(m domain.HealthMetrics) domain.StageScore {
	stage := domain.StageScore{Factors: []string{}}

	if t, ok := firstTier(m.Age, ageLadder); ok {
		stage.Score += t.score
		stage.Factors = append(stage.Factors, t.factor)
	}

	if m.Gender == domain.GenderMale && m.BMI > 27 {
		stage.Score += 0.10
		stage.Factors = append(stage.Factors, maleBMIFactor)
	} else if m.Gender == domain.GenderFemale && m.Age > 35 && m.BMI > 25 {
		stage.Score += 0.08
		stage.Factors = append(stage.Factors, femaleBMIFactor)
	}

	stage.Score = clampMax(stage.Score, 1.0)
	return stage
}

func clampMax(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	return v
}

func clampMin(v, limit float64) float64 {
	if v < limit {
		return limit
	}
	return v
}
