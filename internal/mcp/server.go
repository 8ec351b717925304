package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/diabetes-risk-server/internal/domain"
	"github.com/diabetes-risk-server/internal/service"
)

// PredictToolName is the MCP tool exposing the prediction orchestrator
const PredictToolName = "predict_diabetes_risk"

// Server exposes the prediction orchestrator to MCP clients over stdio
type Server struct {
	orchestrator *service.PredictionOrchestrator
	mcpServer    *mcp.Server
	bounds       domain.MetricBounds
	logger       *logrus.Logger
}

// PredictParams defines parameters for the predict_diabetes_risk tool
type PredictParams struct {
	Age           float64 `json:"age" jsonschema:"age in years, 1 to 120"`
	Gender        string  `json:"gender" jsonschema:"male, female or other"`
	Glucose       float64 `json:"glucose" jsonschema:"fasting plasma glucose in mg/dL, 50 to 300"`
	BloodPressure float64 `json:"bloodPressure" jsonschema:"diastolic blood pressure in mmHg, 40 to 200"`
	BMI           float64 `json:"bmi" jsonschema:"body mass index, 10 to 60"`
	Insulin       float64 `json:"insulin" jsonschema:"serum insulin in uU/mL, 0 to 100"`
}

// PredictResult defines the result structure for the predict_diabetes_risk tool
type PredictResult struct {
	IsDiabetic     bool     `json:"isDiabetic"`
	Confidence     float64  `json:"confidence"`
	DiabetesType   string   `json:"diabetesType,omitempty"`
	RiskFactors    []string `json:"riskFactors"`
	Source         string   `json:"source"`
	ProcessingTime string   `json:"processingTime"`
}

// NewServer creates a new MCP server instance
func NewServer(config domain.MCPConfig, orchestrator *service.PredictionOrchestrator, logger *logrus.Logger) *Server {
	if config.ServerName == "" {
		config.ServerName = "diabetes-risk-mcp"
	}
	if config.ServerVersion == "" {
		config.ServerVersion = "v0.1.0"
	}

	serverInfo := &mcp.Implementation{
		Name:    config.ServerName,
		Version: config.ServerVersion,
	}

	server := &Server{
		orchestrator: orchestrator,
		mcpServer:    mcp.NewServer(serverInfo, nil),
		bounds:       domain.FormBounds,
		logger:       logger,
	}
	server.registerTools()

	return server
}

// Start runs the MCP server on stdio until ctx is cancelled or the client disconnects
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting diabetes risk MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: PredictToolName,
		Description: "Assess diabetes risk from six health metrics. Returns whether the " +
			"patient is likely diabetic, a confidence in [0,1], the likely subtype and the " +
			"triggered risk factors. Always returns a result, falling back to a local " +
			"scorer when the remote model is unavailable.",
	}, s.handlePredict)

	s.logger.WithField("tool_name", PredictToolName).Debug("Registered MCP tool")
}

// handlePredict handles the predict_diabetes_risk tool invocation
func (s *Server) handlePredict(ctx context.Context, req *mcp.CallToolRequest, params PredictParams) (*mcp.CallToolResult, any, error) {
	startTime := time.Now()
	s.logger.WithField("tool", PredictToolName).Info("Tool invoked")

	gender, ok := domain.ParseGender(params.Gender)
	if !ok {
		gender = domain.Gender(strings.TrimSpace(params.Gender))
	}
	metrics := domain.HealthMetrics{
		Age:           params.Age,
		Gender:        gender,
		Glucose:       params.Glucose,
		BloodPressure: params.BloodPressure,
		BMI:           params.BMI,
		Insulin:       params.Insulin,
	}

	if err := domain.ValidateMetrics(metrics, s.bounds); err != nil {
		return createErrorResult("Invalid health metrics", err), nil, nil
	}

	assessment := s.orchestrator.Assess(ctx, metrics)
	result := PredictResult{
		IsDiabetic:     assessment.Result.IsDiabetic,
		Confidence:     assessment.Result.Confidence,
		RiskFactors:    assessment.Result.RiskFactors,
		Source:         string(assessment.Source),
		ProcessingTime: time.Since(startTime).String(),
	}
	if !assessment.Result.DiabetesType.IsNone() {
		result.DiabetesType = assessment.Result.DiabetesType.String()
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summarize(result)},
		},
	}, result, nil
}

func summarize(r PredictResult) string {
	if !r.IsDiabetic {
		return fmt.Sprintf("Low diabetes risk (confidence %.2f, source %s)", r.Confidence, r.Source)
	}
	return fmt.Sprintf("Likely %s diabetes (confidence %.2f, source %s). Risk factors: %s",
		r.DiabetesType, r.Confidence, r.Source, strings.Join(r.RiskFactors, "; "))
}

// createErrorResult creates a standardized error result for tool calls
func createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
