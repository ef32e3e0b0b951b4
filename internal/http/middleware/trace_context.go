package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/ctxutil"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderTraceID   = "X-Trace-Id"

	maxInboundIDLen = 128
)

// AttachTraceContext gives each request a request id and a trace id and echoes both
// back. Inbound ids are honoured when sane. The trace id otherwise comes from the
// otelgin span so log lines and exported spans share one id.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := inboundID(c.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		traceID := inboundID(c.GetHeader(HeaderTraceID))
		if sc := trace.SpanContextFromContext(c.Request.Context()); traceID == "" && sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		if traceID == "" {
			traceID = requestID
		}

		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: requestID,
		}))
		c.Header(HeaderRequestID, requestID)
		c.Header(HeaderTraceID, traceID)
		c.Next()
	}
}

func inboundID(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > maxInboundIDLen || strings.ContainsAny(raw, " \t\r\n") {
		return ""
	}
	return raw
}
