package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/diabetes-risk-server/internal/domain"
)

// maxResponseBytes caps how much of a remote response body is read
const maxResponseBytes = 1 << 20

// PredictorClient calls the remote waterfall predictor over HTTP. Calls are rate
// limited and pass through a circuit breaker; every failure is reported as a
// *domain.TransportError.
type PredictorClient struct {
	endpoint   string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// remoteErrorBody is the payload the remote service returns alongside a 400
type remoteErrorBody struct {
	Error string `json:"error"`
}

// NewPredictorClient creates a client from the predictor configuration
func NewPredictorClient(config domain.PredictorConfig, logger *logrus.Logger) *PredictorClient {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080"
	}
	if config.Path == "" {
		config.Path = "/api/v1/predict"
	}
	if config.Timeout == 0 {
		config.Timeout = 8 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 20
	}
	if config.Burst == 0 {
		config.Burst = 5
	}

	return &PredictorClient{
		endpoint: strings.TrimRight(config.BaseURL, "/") + "/" + strings.TrimLeft(config.Path, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), config.Burst),
		breaker:   newPredictorBreaker(config, logger),
		logger:    logger,
	}
}

// Endpoint returns the full URL predictions are posted to
func (c *PredictorClient) Endpoint() string {
	return c.endpoint
}

// BreakerState reports the current circuit state
func (c *PredictorClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Predict posts metrics to the remote predictor and decodes its response
func (c *PredictorClient) Predict(ctx context.Context, metrics domain.HealthMetrics) (*domain.RemotePrediction, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, domain.NewTransportError("rate limit", 0, "", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, metrics)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domain.NewTransportError("predict", 0, "circuit breaker rejected call", err)
		}
		return nil, err
	}

	return result.(*domain.RemotePrediction), nil
}

func (c *PredictorClient) post(ctx context.Context, metrics domain.HealthMetrics) (*domain.RemotePrediction, error) {
	body, err := json.Marshal(metrics)
	if err != nil {
		return nil, domain.NewTransportError("encode request", 0, "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewTransportError("create request", 0, "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewTransportError("predict", 0, "", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.NewTransportError("read response", resp.StatusCode, "", err)
	}

	if resp.StatusCode != http.StatusOK {
		var remoteErr remoteErrorBody
		message := http.StatusText(resp.StatusCode)
		if json.Unmarshal(payload, &remoteErr) == nil && remoteErr.Error != "" {
			message = remoteErr.Error
		}
		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"message":     message,
		}).Debug("Remote predictor rejected request")
		return nil, domain.NewTransportError("predict", resp.StatusCode, message, nil)
	}

	var prediction domain.RemotePrediction
	if err := json.Unmarshal(payload, &prediction); err != nil {
		return nil, domain.NewTransportError("decode response", resp.StatusCode, err.Error(), domain.ErrMalformedResponse)
	}
	if err := prediction.DiagnosisResult.Validate(); err != nil {
		return nil, domain.NewTransportError("decode response", resp.StatusCode, err.Error(), domain.ErrMalformedResponse)
	}

	return &prediction, nil
}

