package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/daka/metrics"
)

// RequestMetrics counts each request after it is served, keyed by route template.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.IncHTTPRequest(route, strconv.Itoa(c.Writer.Status()))
	}
}
