package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saarzint/AI-Agents-Geoferry/internal/observability"
)

// Metrics feeds the api_* series. The route label is gin's pattern, never the raw
// path, and anything gin could not match shares a single label.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		m.ApiInflightInc()
		began := time.Now()
		c.Next()
		m.ApiInflightDec()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(began))
	}
}
