package middlewares

import (
	"github.com/gin-gonic/gin"
)

// WebSocketAuthMiddleware also accepts ?token= since browsers cannot set
// headers on the upgrade request.
func (a *Authenticator) WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = a.tokenFromRequest(c)
		}
		if !a.authenticate(c, token) {
			return
		}
		c.Next()
	}
}
