// Package middleware implements the request-logging and trace-id
// middleware, adapted from the teacher's internal/api/handlers.
// RequestLoggerMiddleware (internal/api/handlers/middleware.go).
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stackvity/loan-verify/internal/httputil"
)

// RequestLogger generates a trace id for every request (spec §4.9),
// attaches it to the request context and the X-Trace-ID response header,
// and logs request completion with structured fields.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const operation = "RequestLogger"
		traceID := uuid.New().String()

		ctx := context.WithValue(c.Request.Context(), httputil.TraceIDKey, traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set("X-Trace-ID", traceID)

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		logger.Info("request handled",
			zap.String("operation", operation),
			zap.String("trace_id", traceID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
		)
	}
}
