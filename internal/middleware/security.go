package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys and headers shared with handlers
const (
	CorrelationIDKey    = "correlation_id"
	CorrelationIDHeader = "X-Correlation-ID"
	RequestIDHeader     = "X-Request-ID"
)

// SecurityHeaders adds security headers to all responses. The service only
// serves JSON, so nothing may be framed or loaded from it.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Referrer-Policy", "no-referrer")

		// Health metrics must not be stored by intermediaries
		c.Header("Cache-Control", "no-store")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// CORS adds permissive CORS headers to every response and answers preflight
// requests with an empty 200.
func CORS(allowedOrigin string) gin.HandlerFunc {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Correlation-ID, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// CorrelationID tags each request with a correlation ID for audit trails. An ID
// supplied by the caller in X-Correlation-ID or X-Request-ID is kept.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = c.GetHeader(RequestIDHeader)
		}
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(CorrelationIDKey, correlationID)
		c.Header(CorrelationIDHeader, correlationID)

		c.Next()
	}
}

// RequestDeadline bounds the request context so handlers stop work once the
// deadline passes.
func RequestDeadline(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

type auditEntry struct {
	Timestamp     string `json:"timestamp"`
	CorrelationID string `json:"correlation_id"`
	Method        string `json:"method"`
	Path          string `json:"path"`
	Status        int    `json:"status"`
	Latency       string `json:"latency"`
	ClientIP      string `json:"client_ip"`
	UserAgent     string `json:"user_agent"`
	ResponseSize  int    `json:"response_size"`
}

// AuditLogger writes one JSON line per request to out. Request bodies are never
// logged.
func AuditLogger(out io.Writer) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Output: out,
		Formatter: func(param gin.LogFormatterParams) string {
			correlationID, _ := param.Keys[CorrelationIDKey].(string)
			line, err := json.Marshal(auditEntry{
				Timestamp:     param.TimeStamp.UTC().Format(time.RFC3339),
				CorrelationID: correlationID,
				Method:        param.Method,
				Path:          param.Path,
				Status:        param.StatusCode,
				Latency:       param.Latency.String(),
				ClientIP:      param.ClientIP,
				UserAgent:     param.Request.UserAgent(),
				ResponseSize:  param.BodySize,
			})
			if err != nil {
				return ""
			}
			return string(line) + "\n"
		},
	})
}
