package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	RequestIDHeader = "x-request-id"
	requestIDKey    = "request_id"
)

// RequestIDMiddleware echoes a client supplied x-request-id on the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader(RequestIDHeader); id != "" {
			c.Set(requestIDKey, id)
			c.Header(RequestIDHeader, id)
		}
		c.Next()
	}
}

// RequestID returns the request id of the current request, if any.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Logger writes one structured line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= 500 {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Str("request_id", RequestID(c)).
			Msg("http request")
	}
}

// Timeout bounds the request context. Handlers pass it to the store, so
// slow queries are cut off there.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
