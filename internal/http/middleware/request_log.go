package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/ctxutil"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
)

// quietRoutes are polled by probes and scrapers; they only log on failure.
var quietRoutes = map[string]bool{
	"/healthcheck": true,
	"/readyz":      true,
	"/metrics":     true,
}

// RequestLogger writes one line per request. The level follows the status class and
// routes that carry a student id log it, so a student's ledger traffic can be followed.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched:" + c.Request.URL.Path
		}
		if quietRoutes[route] && status < 500 {
			return
		}

		ctx := c.Request.Context()
		kv := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
		}
		if td := ctxutil.GetTraceData(ctx); td != nil {
			kv = append(kv, "request_id", td.RequestID, "trace_id", td.TraceID)
		}
		if agent := ctxutil.AgentFrom(ctx); agent != "" {
			kv = append(kv, "agent", agent)
		}
		if uid := c.Param("user_id"); uid != "" {
			kv = append(kv, "user_id", uid)
		}
		if last := c.Errors.Last(); last != nil {
			kv = append(kv, "error", last.Error())
		}

		if status >= 500 {
			log.Error("request failed", kv...)
		} else if status >= 400 {
			log.Warn("request rejected", kv...)
		} else {
			log.Info("request", kv...)
		}
	}
}
