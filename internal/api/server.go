package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/diabetes-risk-server/internal/domain"
	"github.com/diabetes-risk-server/internal/middleware"
	"github.com/diabetes-risk-server/internal/service"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

// maxBodyBytes bounds prediction request bodies
const maxBodyBytes = 64 << 10

// Server represents the HTTP server of the remote waterfall predictor
type Server struct {
	configManager domain.ConfigManager
	predictor     *service.WaterfallPredictor
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// predictionErrorBody is returned with every 400 from the predict endpoint
type predictionErrorBody struct {
	Error        string              `json:"error"`
	IsDiabetic   bool                `json:"isDiabetic"`
	Confidence   float64             `json:"confidence"`
	DiabetesType domain.DiabetesType `json:"diabetesType"`
	RiskFactors  []string            `json:"riskFactors"`
}

func newPredictionErrorBody(message string) predictionErrorBody {
	return predictionErrorBody{
		Error:        message,
		DiabetesType: domain.DiabetesTypeNone,
		RiskFactors:  []string{},
	}
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, predictor *service.WaterfallPredictor, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if gin.Mode() != gin.TestMode {
		if cfg.Logging.Level == "debug" {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigin))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestDeadline(cfg.Server.RequestTimeout))
	router.Use(middleware.AuditLogger(logger.Out))

	server := &Server{
		configManager: configManager,
		predictor:     predictor,
		logger:        logger,
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/predict", s.handlePredict)
		v1.POST("/validate", s.handleValidate)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
	})
}

// handlePredict runs the waterfall pipeline on the request metrics
func (s *Server) handlePredict(c *gin.Context) {
	metrics, err := s.bindMetrics(c)
	if err != nil {
		s.logRejected(c, err)
		c.JSON(http.StatusBadRequest, newPredictionErrorBody(err.Error()))
		return
	}

	prediction, err := s.predictor.Predict(c.Request.Context(), metrics)
	if err != nil {
		if domain.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, newPredictionErrorBody(err.Error()))
			return
		}
		s.logger.WithError(err).WithField("correlation_id", c.GetString(middleware.CorrelationIDKey)).
			Error("Prediction failed")
		c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(
			domain.ErrCodeInternalServer, "prediction could not be completed", err.Error(),
			c.GetString(middleware.CorrelationIDKey)))
		return
	}

	c.JSON(http.StatusOK, prediction)
}

// handleValidate checks request metrics without scoring them
func (s *Server) handleValidate(c *gin.Context) {
	metrics, err := s.bindMetrics(c)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{
				"valid":   false,
				"field":   ve.Field,
				"message": ve.Message,
			})
			return
		}
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeValidation, "invalid request body", err.Error(),
			c.GetString(middleware.CorrelationIDKey)))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":   true,
		"metrics": metrics,
	})
}

// bindMetrics decodes the body keeping numbers verbatim, so numeric strings
// and JSON numbers go through the same validator.
func (s *Server) bindMetrics(c *gin.Context) (domain.HealthMetrics, error) {
	decoder := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	decoder.UseNumber()

	var raw domain.RawMetrics
	if err := decoder.Decode(&raw); err != nil {
		return domain.HealthMetrics{}, fmt.Errorf("invalid JSON body: %w", err)
	}
	return domain.ParseMetrics(raw, domain.RemoteBounds)
}

func (s *Server) logRejected(c *gin.Context, err error) {
	fields := logrus.Fields{
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		fields["field"] = ve.Field
	}
	s.logger.WithFields(fields).WithError(err).Info("Rejected prediction request")
}
