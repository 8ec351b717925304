package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diabetes-risk-server/internal/domain"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var scenarioArgs = []string{
	"--age", "50", "--gender", "male", "--glucose", "150",
	"--blood-pressure", "92", "--bmi", "32", "--insulin", "30",
}

func TestRawMetricsFromFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--age", "42", "--blood-pressure", "80", "--gender", "Female"}))

	raw, err := rawMetricsFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, domain.RawMetrics{
		domain.FieldAge:           "42",
		domain.FieldBloodPressure: "80",
		domain.FieldGender:        "Female",
	}, raw)
}

func TestDiagnose_InProcessJSON(t *testing.T) {
	args := append([]string{"--in-process", "--no-cache", "--json", "--log-level", "panic"}, scenarioArgs...)
	out, err := runCommand(t, args...)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, true, decoded["isDiabetic"])
	assert.Equal(t, "Type 2", decoded["diabetesType"])
	assert.InDelta(t, 0.7088125, decoded["confidence"], 1e-9)
	assert.Equal(t, string(domain.SourceRemote), decoded["source"])
	assert.NotContains(t, decoded, "remoteError")
}

func TestDiagnose_InProcessText(t *testing.T) {
	args := append([]string{"--in-process", "--no-cache", "--log-level", "panic"}, scenarioArgs...)
	out, err := runCommand(t, args...)
	require.NoError(t, err)

	assert.Contains(t, out, "likely Type 2 diabetes")
	assert.Contains(t, out, "Confidence:   70.9%")
	assert.Contains(t, out, "Source:       remote")
	assert.NotContains(t, out, "Note:")
}

func TestDiagnose_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "Missing field",
			args:    []string{"--age", "50", "--gender", "male"},
			wantErr: domain.FieldGlucose,
		},
		{
			name: "Glucose outside form bounds",
			args: []string{"--age", "50", "--gender", "male", "--glucose", "400",
				"--blood-pressure", "92", "--bmi", "32", "--insulin", "30"},
			wantErr: domain.FieldGlucose,
		},
		{
			name: "Unknown gender",
			args: []string{"--age", "50", "--gender", "robot", "--glucose", "150",
				"--blood-pressure", "92", "--bmi", "32", "--insulin", "30"},
			wantErr: domain.FieldGender,
		},
		{
			name: "Non-numeric age",
			args: []string{"--age", "fifty", "--gender", "male", "--glucose", "150",
				"--blood-pressure", "92", "--bmi", "32", "--insulin", "30"},
			wantErr: domain.FieldAge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--in-process", "--no-cache", "--log-level", "panic"}, tt.args...)
			out, err := runCommand(t, args...)
			require.Error(t, err)
			assert.True(t, domain.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, out)
		})
	}
}
