package observability

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestMetrics returns gin middleware that records request counts and
// durations for every route
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		RecordHTTPRequest(
			c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
