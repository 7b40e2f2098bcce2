package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/services"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
)

type AdminController struct {
	Sweep         *services.ExpirationSweep
	Notifications *services.NotificationService
}

func NewAdminController(sweep *services.ExpirationSweep, notifications *services.NotificationService) *AdminController {
	return &AdminController{Sweep: sweep, Notifications: notifications}
}

// RunExpirationSweep runs the daily sweep now and returns its report.
func (ac *AdminController) RunExpirationSweep(c *gin.Context) {
	report, err := ac.Sweep.RunManually(c.Request.Context(), actorFrom(c))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Expiration sweep completed", report)
}

// Broadcast pushes a live message to every connected user of a role. It is
// not stored.
func (ac *AdminController) Broadcast(c *gin.Context) {
	var input struct {
		Role    models.Role             `json:"role" binding:"required"`
		Title   string                  `json:"title" binding:"required"`
		Message string                  `json:"message" binding:"required"`
		Type    models.NotificationType `json:"type"`
	}
	if !bindJSON(c, &input) {
		return
	}
	if !input.Role.Valid() {
		utils.RespondAppError(c, utils.NewValidationError("role", "is not a known role"))
		return
	}
	if input.Type != "" && !input.Type.Valid() {
		utils.RespondAppError(c, utils.NewValidationError("type", "is not a known notification type"))
		return
	}
	delivered := ac.Notifications.NotifyRole(input.Role, strings.TrimSpace(input.Title), strings.TrimSpace(input.Message), input.Type)
	utils.RespondJSON(c, http.StatusOK, "Broadcast sent", gin.H{"delivered": delivered})
}
