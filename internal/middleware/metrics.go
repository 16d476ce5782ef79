package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pdplens/pdplens/internal/pkg/metrics"
)

// Metrics returns a middleware that records request counts and latency.
// Paths are reported as route templates so parameterized routes do not
// explode the label space.
func Metrics(m *metrics.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
