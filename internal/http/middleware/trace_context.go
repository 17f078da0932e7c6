package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"

	TraceIDKey   = "trace_id"
	RequestIDKey = "request_id"
)

// AttachTraceContext echoes or mints a request id and exposes the active
// trace id. It must run after otelgin so the span exists.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.New().String()
		}
		traceID := ""
		if spanCtx := trace.SpanContextFromContext(c.Request.Context()); spanCtx.HasTraceID() {
			traceID = spanCtx.TraceID().String()
		}
		c.Set(RequestIDKey, reqID)
		c.Writer.Header().Set(headerRequestID, reqID)
		if traceID != "" {
			c.Set(TraceIDKey, traceID)
			c.Writer.Header().Set(headerTraceID, traceID)
		}
		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{TraceID: traceID, RequestID: reqID})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
