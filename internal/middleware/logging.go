package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prosync/audit-task-api/internal/constants"
	"github.com/prosync/audit-task-api/internal/logger"
	"go.uber.org/zap"
)

// RequestID tags every request with an ID, reusing the caller's X-Request-ID
// when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Header(constants.HeaderRequestID, requestID)
		c.Set(constants.ContextKeyRequestID, requestID)
		c.Next()
	}
}

// GetRequestID returns the request ID set by RequestID
func GetRequestID(c *gin.Context) string {
	return c.GetString(constants.ContextKeyRequestID)
}

// Logging writes an access log line when a request arrives and when it
// completes. Client errors log at warn and server errors at error.
func Logging(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := GetRequestID(c)

		log.Info("HTTP_IN",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("client_ip", c.ClientIP()),
		)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes_written", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
		}
		if actor, ok := GetActor(c); ok {
			fields = append(fields, zap.Uint64("actor_id", actor.ActorID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		log.Log(logger.Status(status), "HTTP_OUT", fields...)
	}
}
