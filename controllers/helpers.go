package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/services"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
)

// actorFrom builds the service level caller from what the auth middleware set.
func actorFrom(c *gin.Context) services.Actor {
	role, _ := c.Get(utils.RoleKey)
	r, _ := role.(models.Role)
	return services.Actor{
		ID:     c.GetUint(utils.UserIDKey),
		Role:   r,
		Origin: c.ClientIP(),
	}
}

// bindJSON reports a malformed body as a validation error.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		utils.RespondAppError(c, utils.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondAppError(c, utils.NewValidationError(name, "must be a positive integer"))
		return 0, false
	}
	return uint(id), true
}
