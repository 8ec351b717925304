package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/diabetes-risk-server/internal/domain"
)

func TestScreenGlucose(t *testing.T) {
	tests := []struct {
		name        string
		glucose     float64
		score       float64
		factorCount int
	}{
		{"Severely elevated", 210, 0.95, 1},
		{"At 200 boundary", 200, 0.95, 1},
		{"Diabetes threshold", 126, 0.80, 1},
		{"Pre-diabetes", 110, 0.40, 1},
		{"Borderline", 90, 0.20, 1},
		{"Normal", 85, 0.10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := ScreenGlucose(tt.glucose)
			assert.Equal(t, tt.score, stage.Score)
			assert.Len(t, stage.Factors, tt.factorCount)
			assert.NotNil(t, stage.Factors)
		})
	}
}

func TestAssessMetabolic(t *testing.T) {
	tests := []struct {
		name    string
		metrics domain.HealthMetrics
		score   float64
		factors []string
	}{
		{
			name:    "No triggers",
			metrics: domain.HealthMetrics{BMI: 22, BloodPressure: 70, Insulin: 10},
			score:   0,
			factors: []string{},
		},
		{
			name:    "Obesity, hypertension and hyperinsulinemia",
			metrics: domain.HealthMetrics{BMI: 32, BloodPressure: 92, Insulin: 30},
			score:   0.85,
			factors: []string{bmiLadder[1].factor, bloodPressureLadder[0].factor, insulinHighFactor},
		},
		{
			name:    "Severe obesity with low insulin clamps at one",
			metrics: domain.HealthMetrics{BMI: 40, BloodPressure: 95, Insulin: 1},
			score:   1.0,
			factors: []string{bmiLadder[0].factor, bloodPressureLadder[0].factor, insulinLowFactor},
		},
		{
			name:    "Overweight with elevated pressure and insulin",
			metrics: domain.HealthMetrics{BMI: 26, BloodPressure: 86, Insulin: 20},
			score:   0.50,
			factors: []string{bmiLadder[2].factor, bloodPressureLadder[1].factor, insulinElevatedFactor},
		},
		{
			name:    "Insulin exactly 25 falls to elevated rung",
			metrics: domain.HealthMetrics{BMI: 20, BloodPressure: 60, Insulin: 25},
			score:   0.15,
			factors: []string{insulinElevatedFactor},
		},
		{
			name:    "Insulin exactly 2 triggers nothing",
			metrics: domain.HealthMetrics{BMI: 20, BloodPressure: 60, Insulin: 2},
			score:   0,
			factors: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := AssessMetabolic(tt.metrics)
			assert.InDelta(t, tt.score, stage.Score, 1e-9)
			assert.Equal(t, tt.factors, stage.Factors)
		})
	}
}

func TestAssessDemographic(t *testing.T) {
	tests := []struct {
		name    string
		metrics domain.HealthMetrics
		score   float64
		factors int
	}{
		{"Young female", domain.HealthMetrics{Age: 25, Gender: domain.GenderFemale, BMI: 21}, 0, 0},
		{"Senior", domain.HealthMetrics{Age: 70, Gender: domain.GenderOther, BMI: 30}, 0.30, 1},
		{"Middle aged male with high BMI", domain.HealthMetrics{Age: 50, Gender: domain.GenderMale, BMI: 32}, 0.35, 2},
		{"Male at BMI 27 gets no addend", domain.HealthMetrics{Age: 50, Gender: domain.GenderMale, BMI: 27}, 0.25, 1},
		{"Female over 35 with BMI above 25", domain.HealthMetrics{Age: 40, Gender: domain.GenderFemale, BMI: 26}, 0.23, 2},
		{"Female aged exactly 35", domain.HealthMetrics{Age: 35, Gender: domain.GenderFemale, BMI: 26}, 0.15, 1},
		{"Other gender never gets addend", domain.HealthMetrics{Age: 40, Gender: domain.GenderOther, BMI: 40}, 0.15, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := AssessDemographic(tt.metrics)
			assert.InDelta(t, tt.score, stage.Score, 1e-9)
			assert.Len(t, stage.Factors, tt.factors)
		})
	}
}

func TestStageScoresStayInUnitInterval(t *testing.T) {
	genders := []domain.Gender{domain.GenderMale, domain.GenderFemale, domain.GenderOther}
	for _, g := range genders {
		for age := 1.0; age <= 120; age += 17 {
			for bmi := 10.0; bmi <= 60; bmi += 7 {
				for insulin := 0.0; insulin <= 100; insulin += 13 {
					m := domain.HealthMetrics{Age: age, Gender: g, Glucose: 50 + age*2, BloodPressure: 40 + bmi*2, BMI: bmi, Insulin: insulin}
					for _, stage := range []domain.StageScore{ScreenGlucose(m.Glucose), AssessMetabolic(m), AssessDemographic(m)} {
						assert.GreaterOrEqual(t, stage.Score, 0.0)
						assert.LessOrEqual(t, stage.Score, 1.0)
					}
				}
			}
		}
	}
}
