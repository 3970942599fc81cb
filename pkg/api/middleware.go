package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rajat1299/memoire/pkg/metrics"
)

// apiKeyHeader carries the per-user API key.
const apiKeyHeader = "X-API-Key"

// requestMetrics records request counts and latency per route.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RequestCount.WithLabelValues(path, c.Request.Method,
			strconv.Itoa(c.Writer.Status())).Inc()
		metrics.RequestLatency.WithLabelValues(path, c.Request.Method).
			Observe(time.Since(start).Seconds())
	}
}

// apiKey extracts the caller's API key, or "".
func apiKey(c *gin.Context) string {
	return c.GetHeader(apiKeyHeader)
}
