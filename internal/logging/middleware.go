package logging

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request after the handler chain finishes.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
		}
		switch {
		case status >= 500:
			Error("request failed", kv...)
		case status >= 400:
			Warn("request rejected", kv...)
		default:
			Info("request", kv...)
		}
	}
}
