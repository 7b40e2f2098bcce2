package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
)

func ReceiptLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderNumber := c.Param("order_number")
		utils.InfoLogger.WithField("order_number", orderNumber).Info("receipt requested")

		c.Next()

		if c.Writer.Status() == http.StatusOK {
			utils.InfoLogger.WithField("order_number", orderNumber).Info("receipt served")
		} else {
			utils.ErrorLogger.WithField("order_number", orderNumber).Warnf("receipt request failed with status %d", c.Writer.Status())
		}
	}
}
