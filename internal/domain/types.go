// Package domain contains the core entities for diabetes risk assessment: the six
// patient health metrics, the intermediate per-stage scores of the waterfall
// pipeline, and the externally visible diagnosis result.
//
// The scoring pipeline is a deterministic rule cascade. Nothing in this package is a
// trained statistical model; stage and ensemble constants are fixed rules.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Gender is the categorical gender input. Parsing is case-insensitive.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ParseGender normalizes s into a Gender. It reports false for any value outside
// male, female and other.
func ParseGender(s string) (Gender, bool) {
	g := Gender(strings.ToLower(strings.TrimSpace(s)))
	if g.IsValid() {
		return g, true
	}
	return "", false
}

// IsValid reports whether g is one of the supported categories.
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	default:
		return false
	}
}

// String returns the lowercase gender name
func (g Gender) String() string {
	return string(g)
}

// HealthMetrics is the validated input for one prediction request. It is built once
// per submission and never mutated.
type HealthMetrics struct {
	Age           float64 `json:"age"`
	Gender        Gender  `json:"gender"`
	Glucose       float64 `json:"glucose"`
	BloodPressure float64 `json:"bloodPressure"`
	BMI           float64 `json:"bmi"`
	Insulin       float64 `json:"insulin"`
}

// DiabetesType is the disease subtype label. The zero value is DiabetesTypeNone,
// which is the only valid value for a negative diagnosis.
type DiabetesType int

const (
	DiabetesTypeNone DiabetesType = iota
	DiabetesType1
	DiabetesType2
)

// ErrInvalidDiabetesType is returned when decoding an unknown subtype label
var ErrInvalidDiabetesType = errors.New("invalid diabetes type")

// String returns the display label of the subtype
func (t DiabetesType) String() string {
	switch t {
	case DiabetesType1:
		return "Type 1"
	case DiabetesType2:
		return "Type 2"
	default:
		return "none"
	}
}

// IsNone reports whether no subtype is set
func (t DiabetesType) IsNone() bool {
	return t == DiabetesTypeNone
}

// MarshalJSON encodes DiabetesTypeNone as null and the subtypes as their labels.
func (t DiabetesType) MarshalJSON() ([]byte, error) {
	if t.IsNone() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts null, "", "none", "Type 1" and "Type 2".
func (t *DiabetesType) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = DiabetesTypeNone
		return nil
	}

	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDiabetesType, string(data))
	}

	parsed, err := ParseDiabetesType(label)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseDiabetesType converts a label into a DiabetesType
func ParseDiabetesType(label string) (DiabetesType, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(label), " ", "")) {
	case "", "none":
		return DiabetesTypeNone, nil
	case "type1":
		return DiabetesType1, nil
	case "type2":
		return DiabetesType2, nil
	default:
		return DiabetesTypeNone, fmt.Errorf("%w: %q", ErrInvalidDiabetesType, label)
	}
}

// StageScore is the partial result of one waterfall stage. Factors hold one entry per
// triggered rule, in rule evaluation order.
type StageScore struct {
	Score   float64  `json:"score"`
	Factors []string `json:"factors"`
}

// DiagnosisResult is the only externally visible artifact of a prediction.
//
// RiskFactors is empty whenever IsDiabetic is false, and DiabetesType is set if and
// only if IsDiabetic is true. Confidence never drops below MinConfidence.
type DiagnosisResult struct {
	IsDiabetic   bool         `json:"isDiabetic"`
	Confidence   float64      `json:"confidence"`
	DiabetesType DiabetesType `json:"diabetesType"`
	RiskFactors  []string     `json:"riskFactors"`
}

// MinConfidence is the floor applied to every reported confidence
const MinConfidence = 0.1

// Validate checks the result invariants. It is used to reject malformed remote
// responses before they reach a caller.
func (r DiagnosisResult) Validate() error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	if r.IsDiabetic && r.DiabetesType.IsNone() {
		return errors.New("positive diagnosis without diabetes type")
	}
	if !r.IsDiabetic && !r.DiabetesType.IsNone() {
		return fmt.Errorf("negative diagnosis with diabetes type %s", r.DiabetesType)
	}
	if !r.IsDiabetic && len(r.RiskFactors) > 0 {
		return errors.New("negative diagnosis with risk factors")
	}
	return nil
}

// ModelStages exposes the four waterfall scores of a remote prediction for
// observability. It is not part of the DiagnosisResult contract.
type ModelStages struct {
	GlucoseScreening    float64 `json:"stage1_glucose_screening"`
	MetabolicAssessment float64 `json:"stage2_metabolic_assessment"`
	DemographicRisk     float64 `json:"stage3_demographic_risk"`
	EnsemblePrediction  float64 `json:"stage4_ensemble_prediction"`
}

// RemotePrediction is the success body of the remote predictor
type RemotePrediction struct {
	DiagnosisResult
	ModelStages ModelStages `json:"modelStages"`
}

// PredictionSource names the strategy that produced a DiagnosisResult
type PredictionSource string

const (
	SourceRemote        PredictionSource = "remote"
	SourceCache         PredictionSource = "cache"
	SourceLocalFallback PredictionSource = "local_fallback"
)
