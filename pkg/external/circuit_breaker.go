package external

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/diabetes-risk-server/internal/domain"
)

// PredictorBreakerName identifies the remote predictor circuit in logs
const PredictorBreakerName = "remote-predictor"

// newPredictorBreaker builds the circuit breaker guarding the remote predictor.
// The circuit opens once BreakerMinRequests calls have been seen in the current
// interval and the failure ratio reaches BreakerFailureRatio.
func newPredictorBreaker(config domain.PredictorConfig, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	if config.BreakerMaxRequests == 0 {
		config.BreakerMaxRequests = 3
	}
	if config.BreakerInterval == 0 {
		config.BreakerInterval = 30 * time.Second
	}
	if config.BreakerTimeout == 0 {
		config.BreakerTimeout = 60 * time.Second
	}
	if config.BreakerMinRequests == 0 {
		config.BreakerMinRequests = 3
	}
	if config.BreakerFailureRatio == 0 {
		config.BreakerFailureRatio = 0.6
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        PredictorBreakerName,
		MaxRequests: config.BreakerMaxRequests,
		Interval:    config.BreakerInterval,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.BreakerFailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}
