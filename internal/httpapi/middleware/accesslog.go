package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// AccessLog writes one line per request, including requests whose handler
// aborted the connection. Query strings are left out since they may carry
// tokens.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			status := c.Writer.Status()
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			slog.Log(c.Request.Context(), level, "http request",
				"request_id", c.GetString(RequestIDKey),
				"method", c.Request.Method,
				"path", c.FullPath(),
				"status", status,
				"bytes", c.Writer.Size(),
				"latency_ms", time.Since(start).Milliseconds(),
			)
		}()
		c.Next()
	}
}
