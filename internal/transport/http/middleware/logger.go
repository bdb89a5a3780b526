package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/logger"
)

// Logger emits access logs for every HTTP request with correlation identifiers,
// the resolved visitor and masked PII.
func Logger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		reqCtx := GetRequestContext(c)
		fields := []zap.Field{
			zap.String("trace_id", GetTraceID(c)),
			zap.String("request_id", appLogger.RequestIDFromContext(c.Request.Context())),
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", appLogger.MaskIP(c.ClientIP())),
		}

		if ua := c.Request.UserAgent(); ua != "" {
			fields = append(fields, zap.String("user_agent", ua))
		}

		identity := GetIdentity(c)
		switch {
		case identity.IsAuthenticated():
			fields = append(fields, zap.String("user_id", identity.UserID))
			if identity.IsImpersonated() {
				fields = append(fields, zap.String("impersonator_id", identity.ImpersonatorID))
			}
		case reqCtx.SessionID != "":
			fields = append(fields, zap.String("session_id", appLogger.MaskString(reqCtx.SessionID)))
		}

		if len(c.Errors) > 0 {
			log.Error("request failed", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}

		log.Info("request completed", fields...)
	}
}
