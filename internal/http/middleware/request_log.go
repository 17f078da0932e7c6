package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if v := c.GetString(RequestIDKey); v != "" {
			fields = append(fields, "request_id", v)
		}
		if v := c.GetString(TraceIDKey); v != "" {
			fields = append(fields, "trace_id", v)
		}
		if v := c.GetString(SubjectKey); v != "" {
			fields = append(fields, "user_id", v)
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
