package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger returns a Gin middleware that logs each request using zap.
// Runs outside the auth resolver, so the identity fields reflect
// whatever resolution produced by the time the handler chain finished.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if username := CurrentUsername(c); username != "" {
			fields = append(fields,
				zap.String("user", username),
				zap.String("device", CurrentTokenID(c)))
		}
		log.Info("request", fields...)
	}
}
