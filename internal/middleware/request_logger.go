package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamgate/internal/logger"
	"github.com/mantonx/streamgate/internal/utils"
)

// RequestIDHeader carries the correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestLogger assigns a request id and logs every request once it completes.
// Bodies are never read; media payloads pass through untouched.
func RequestLogger(log hclog.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Named("http")
	}

	return func(c *gin.Context) {
		requestID := utils.RequestID(c.GetHeader(RequestIDHeader))
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		// Skip logging for health checks
		if c.Request.URL.Path == "/api/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		args := []interface{}{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"size", c.Writer.Size(),
			"ip", c.ClientIP(),
		}
		if r := c.GetHeader("Range"); r != "" {
			args = append(args, "range", r)
		}

		switch {
		case c.Writer.Status() >= 500:
			log.Warn("http request", args...)
		default:
			log.Debug("http request", args...)
		}
	}
}

// ErrorLogger logs errors attached to the gin context
func ErrorLogger(log hclog.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Named("http")
	}

	return func(c *gin.Context) {
		c.Next()

		for _, err := range c.Errors {
			log.Error("request error",
				"request_id", c.GetString(requestIDKey),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"error", err.Error(),
			)
		}
	}
}

// RequestIDFrom returns the id assigned by RequestLogger.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
