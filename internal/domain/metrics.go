package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// JSON field names of the six health metrics, in validation order.
const (
	FieldAge           = "age"
	FieldGender        = "gender"
	FieldGlucose       = "glucose"
	FieldBloodPressure = "bloodPressure"
	FieldBMI           = "bmi"
	FieldInsulin       = "insulin"
)

// MetricFields lists the metric fields in the order they are validated
var MetricFields = []string{FieldAge, FieldGender, FieldGlucose, FieldBloodPressure, FieldBMI, FieldInsulin}

// Range is an inclusive numeric domain
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies within the range, bounds included
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// MetricBounds holds the declared domain of every numeric metric
type MetricBounds struct {
	Age           Range
	Glucose       Range
	BloodPressure Range
	BMI           Range
	Insulin       Range
}

// RemoteBounds are enforced by the remote predictor service.
var RemoteBounds = MetricBounds{
	Age:           Range{Min: 1, Max: 120},
	Glucose:       Range{Min: 50, Max: 400},
	BloodPressure: Range{Min: 40, Max: 200},
	BMI:           Range{Min: 10, Max: 60},
	Insulin:       Range{Min: 0, Max: 100},
}

// FormBounds are enforced at form entry. Glucose is narrower than at the remote boundary.
var FormBounds = MetricBounds{
	Age:           Range{Min: 1, Max: 120},
	Glucose:       Range{Min: 50, Max: 300},
	BloodPressure: Range{Min: 40, Max: 200},
	BMI:           Range{Min: 10, Max: 60},
	Insulin:       Range{Min: 0, Max: 100},
}

// RawMetrics is an undecoded submission: a JSON object or a set of form values.
// Numeric fields may be numbers or numeric-looking strings.
type RawMetrics map[string]interface{}

// ParseMetrics validates raw input into HealthMetrics. Fields are checked in
// MetricFields order and the first failure is returned as a *ValidationError; no
// partial result is produced.
func ParseMetrics(raw RawMetrics, bounds MetricBounds) (HealthMetrics, error) {
	var m HealthMetrics
	var err error

	if m.Age, err = parseNumber(raw, FieldAge, bounds.Age); err != nil {
		return HealthMetrics{}, err
	}
	if m.Gender, err = parseGenderField(raw); err != nil {
		return HealthMetrics{}, err
	}
	if m.Glucose, err = parseNumber(raw, FieldGlucose, bounds.Glucose); err != nil {
		return HealthMetrics{}, err
	}
	if m.BloodPressure, err = parseNumber(raw, FieldBloodPressure, bounds.BloodPressure); err != nil {
		return HealthMetrics{}, err
	}
	if m.BMI, err = parseNumber(raw, FieldBMI, bounds.BMI); err != nil {
		return HealthMetrics{}, err
	}
	if m.Insulin, err = parseNumber(raw, FieldInsulin, bounds.Insulin); err != nil {
		return HealthMetrics{}, err
	}

	return m, nil
}

// ValidateMetrics range-checks an already typed HealthMetrics value using the same
// ordering as ParseMetrics. An empty gender counts as missing.
func ValidateMetrics(m HealthMetrics, bounds MetricBounds) error {
	if err := checkRange(FieldAge, m.Age, bounds.Age); err != nil {
		return err
	}
	if m.Gender == "" {
		return NewValidationError(FieldGender, "value is required", nil)
	}
	if _, ok := ParseGender(string(m.Gender)); !ok {
		return NewValidationError(FieldGender, "must be one of male, female, other", string(m.Gender))
	}

	checks := []struct {
		field string
		value float64
		rng   Range
	}{
		{FieldGlucose, m.Glucose, bounds.Glucose},
		{FieldBloodPressure, m.BloodPressure, bounds.BloodPressure},
		{FieldBMI, m.BMI, bounds.BMI},
		{FieldInsulin, m.Insulin, bounds.Insulin},
	}
	for _, c := range checks {
		if err := checkRange(c.field, c.value, c.rng); err != nil {
			return err
		}
	}
	return nil
}

func parseNumber(raw RawMetrics, field string, rng Range) (float64, error) {
	value, ok := raw[field]
	if !ok || value == nil {
		return 0, NewValidationError(field, "value is required", nil)
	}

	var n float64
	switch v := value.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, NewValidationError(field, "must be numeric", v.String())
		}
		n = f
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, NewValidationError(field, "value is required", v)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, NewValidationError(field, "must be numeric", v)
		}
		n = f
	default:
		return 0, NewValidationError(field, "must be numeric", value)
	}

	if err := checkRange(field, n, rng); err != nil {
		return 0, err
	}
	return n, nil
}

func parseGenderField(raw RawMetrics) (Gender, error) {
	value, ok := raw[FieldGender]
	if !ok || value == nil {
		return "", NewValidationError(FieldGender, "value is required", nil)
	}
	s, ok := value.(string)
	if !ok {
		return "", NewValidationError(FieldGender, "must be a string", value)
	}
	if strings.TrimSpace(s) == "" {
		return "", NewValidationError(FieldGender, "value is required", s)
	}
	g, ok := ParseGender(s)
	if !ok {
		return "", NewValidationError(FieldGender, "must be one of male, female, other", s)
	}
	return g, nil
}

func checkRange(field string, v float64, rng Range) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NewValidationError(field, "must be numeric", v)
	}
	if !rng.Contains(v) {
		return NewValidationError(field, fmt.Sprintf("must be between %g and %g", rng.Min, rng.Max), v)
	}
	return nil
}
