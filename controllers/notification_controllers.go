package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/pharmacy-marketplace/services"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
)

type NotificationController struct {
	Notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{Notifications: notifications}
}

func (nc *NotificationController) List(c *gin.Context) {
	var query struct {
		UnreadOnly bool `form:"unread_only"`
		Page       int  `form:"page"`
		Limit      int  `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.RespondAppError(c, utils.NewValidationError("query", err.Error()))
		return
	}
	rows, page, err := nc.Notifications.List(c.Request.Context(), actorFrom(c).ID, services.NotificationFilter{
		UnreadOnly: query.UnreadOnly,
		Page:       query.Page,
		Limit:      query.Limit,
	})
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications retrieved", gin.H{
		"notifications": rows,
		"pagination":    page,
	})
}

func (nc *NotificationController) UnreadCount(c *gin.Context) {
	count, err := nc.Notifications.UnreadCount(c.Request.Context(), actorFrom(c).ID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Unread notifications", gin.H{"unread_count": count})
}

func (nc *NotificationController) MarkRead(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	n, err := nc.Notifications.MarkRead(c.Request.Context(), id, actorFrom(c).ID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification marked as read", n)
}

func (nc *NotificationController) MarkAllRead(c *gin.Context) {
	updated, err := nc.Notifications.MarkAllRead(c.Request.Context(), actorFrom(c).ID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All notifications marked as read", gin.H{"updated": updated})
}
