package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diabetes-risk-server/internal/bootstrap"
	"github.com/diabetes-risk-server/internal/config"
	"github.com/diabetes-risk-server/internal/domain"
	"github.com/diabetes-risk-server/internal/logging"
	"github.com/diabetes-risk-server/internal/service"
)

// diagnosisOutput is the --json rendering of an assessment
type diagnosisOutput struct {
	domain.DiagnosisResult
	Source      domain.PredictionSource `json:"source"`
	RemoteError string                  `json:"remoteError,omitempty"`
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Assess diabetes risk from six health metrics",
		Long: "diagnose validates the metrics with form-entry bounds, asks the remote " +
			"waterfall predictor for a diagnosis and falls back to the local scorer when " +
			"the remote service is unavailable.",
		Example:      "  diagnose --age 50 --gender male --glucose 150 --blood-pressure 92 --bmi 32 --insulin 30",
		SilenceUsage: true,
		RunE:         runDiagnose,
	}

	flags := cmd.Flags()
	flags.String(domain.FieldAge, "", "Age in years (1-120)")
	flags.String(domain.FieldGender, "", "Gender: male, female or other")
	flags.String(domain.FieldGlucose, "", "Fasting plasma glucose in mg/dL (50-300)")
	flags.String("blood-pressure", "", "Diastolic blood pressure in mmHg (40-200)")
	flags.String(domain.FieldBMI, "", "Body mass index (10-60)")
	flags.String(domain.FieldInsulin, "", "Serum insulin in uU/mL (0-100)")

	flags.String("remote-url", "", "Remote predictor base URL (overrides configuration)")
	flags.Bool("in-process", false, "Evaluate the waterfall in this process instead of calling the remote service")
	flags.Bool("no-cache", false, "Bypass the prediction cache")
	flags.Bool("json", false, "Print the result as JSON")
	flags.String("log-level", "warn", "Log level written to stderr")

	return cmd
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	raw, err := rawMetricsFromFlags(cmd)
	if err != nil {
		return err
	}
	metrics, err := domain.ParseMetrics(raw, domain.FormBounds)
	if err != nil {
		return err
	}

	configManager, err := config.NewManager()
	if err != nil {
		return err
	}
	cfg := configManager.GetConfig()

	if remoteURL, _ := cmd.Flags().GetString("remote-url"); remoteURL != "" {
		cfg.Predictor.BaseURL = remoteURL
	}
	logLevel, _ := cmd.Flags().GetString("log-level")
	inProcess, _ := cmd.Flags().GetBool("in-process")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	asJSON, _ := cmd.Flags().GetBool("json")

	loggingConfig := cfg.Logging
	loggingConfig.Level = logLevel
	loggingConfig.Format = "text"
	logger := logging.NewStdioSafeLogger(loggingConfig)

	pipeline, err := bootstrap.NewPipeline(cfg, logger, bootstrap.Options{
		InProcess:    inProcess,
		DisableCache: noCache,
	})
	if err != nil {
		return err
	}
	defer pipeline.Close()

	assessment := pipeline.Orchestrator.Assess(cmd.Context(), metrics)

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), assessment)
	}
	writeText(cmd.OutOrStdout(), assessment)
	return nil
}

// rawMetricsFromFlags collects the metric flags that were set, keyed by field name
func rawMetricsFromFlags(cmd *cobra.Command) (domain.RawMetrics, error) {
	flagNames := map[string]string{
		domain.FieldAge:           domain.FieldAge,
		domain.FieldGender:        domain.FieldGender,
		domain.FieldGlucose:       domain.FieldGlucose,
		domain.FieldBloodPressure: "blood-pressure",
		domain.FieldBMI:           domain.FieldBMI,
		domain.FieldInsulin:       domain.FieldInsulin,
	}

	raw := domain.RawMetrics{}
	for _, field := range domain.MetricFields {
		value, err := cmd.Flags().GetString(flagNames[field])
		if err != nil {
			return nil, err
		}
		if cmd.Flags().Changed(flagNames[field]) {
			raw[field] = value
		}
	}
	return raw, nil
}

func writeJSON(w io.Writer, a service.Assessment) error {
	out := diagnosisOutput{DiagnosisResult: a.Result, Source: a.Source}
	if a.RemoteErr != nil {
		out.RemoteError = a.RemoteErr.Error()
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func writeText(w io.Writer, a service.Assessment) {
	r := a.Result
	if r.IsDiabetic {
		fmt.Fprintf(w, "Diagnosis:    likely %s diabetes\n", r.DiabetesType)
	} else {
		fmt.Fprintln(w, "Diagnosis:    low risk")
	}
	fmt.Fprintf(w, "Confidence:   %.1f%%\n", r.Confidence*100)
	if len(r.RiskFactors) > 0 {
		fmt.Fprintf(w, "Risk factors: %s\n", strings.Join(r.RiskFactors, "\n              "))
	}
	fmt.Fprintf(w, "Source:       %s\n", a.Source)
	if a.RemoteErr != nil {
		fmt.Fprintf(w, "Note:         remote predictor unavailable (%v)\n", a.RemoteErr)
	}
}
