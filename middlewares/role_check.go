package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
)

// RequireRoles lets the request through only for the listed roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		v, exists := c.Get(utils.RoleKey)
		if !exists {
			utils.RespondAppError(c, utils.NewUnauthorizedError("unauthorized"))
			c.Abort()
			return
		}
		role, _ := v.(models.Role)
		if _, ok := allowed[role]; !ok {
			utils.RespondAppError(c, utils.NewForbiddenError("Access denied for role "+string(role)))
			c.Abort()
			return
		}
		c.Next()
	}
}
