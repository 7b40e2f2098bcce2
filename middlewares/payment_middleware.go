package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
)

// PaymentSecurityHeaders adds security headers for payment endpoints
func PaymentSecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Next()
	}
}

// LogPaymentRequest logs payment request details
func LogPaymentRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"request_id": c.GetString(utils.RequestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		}
		if uid, ok := c.Get(utils.UserIDKey); ok {
			fields["user_id"] = uid
		}
		entry := utils.InfoLogger.WithFields(fields)
		if c.Writer.Status() >= 400 {
			entry = utils.ErrorLogger.WithFields(fields)
			entry.Warn("payment request failed")
			return
		}
		entry.Info("payment request")
	}
}
