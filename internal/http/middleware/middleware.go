package middleware

import (
	"strconv"
	"time"

	"leadconsole_backend/platform/metrics"

	"github.com/gin-gonic/gin"
)

// RequestTimer records request latency by method, route and status.
func RequestTimer(reg *metrics.Registry) gin.HandlerFunc {
	durations := reg.NewHistogramVec("http", "request_duration_seconds", "HTTP request latency.",
		[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}, "method", "route", "status")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		durations.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
