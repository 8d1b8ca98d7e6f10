package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestMetricsMiddleware records one HTTP sample per request, labelled by
// route pattern so path parameters do not explode cardinality.
func RequestMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
