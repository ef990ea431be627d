package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/pkg/middleware/requestid"
)

// Audit logs successful mutating requests with the acting identity.
func Audit(logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("resource", resource),
			zap.String("path", c.FullPath()),
			zap.String("method", c.Request.Method),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", requestid.Value(c)),
		}
		if actor, ok := ActorFromContext(c); ok {
			fields = append(fields, zap.String("actor_id", actor.UserID), zap.String("actor_role", string(actor.Role)))
		}
		if courseID := c.Param("courseId"); courseID != "" {
			fields = append(fields, zap.String("course_id", courseID))
		}
		logger.Info("audit", fields...)
	}
}
