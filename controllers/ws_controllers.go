package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/pharmacy-marketplace/realtime"
	"github.com/yeremiapane/pharmacy-marketplace/services"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 4096
)

type WSController struct {
	Hub           *realtime.Hub
	Notifications *services.NotificationService
	upgrader      websocket.Upgrader
}

// NewWSController accepts upgrades from allowedOrigin only; an empty value
// accepts any origin.
func NewWSController(hub *realtime.Hub, notifications *services.NotificationService, allowedOrigin string) *WSController {
	return &WSController{
		Hub:           hub,
		Notifications: notifications,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Serve upgrades the request and keeps the connection registered
// until the client goes away.
func (wc *WSController) Serve(c *gin.Context) {
	actor := actorFrom(c)
	conn, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.WithField("user_id", actor.ID).Warnf("websocket upgrade failed: %v", err)
		return
	}

	client := realtime.NewClient(actor.ID, string(actor.Role), conn)
	wc.Hub.Register(client)
	defer wc.Hub.Unregister(client)

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wc.ping(ctx, client)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.ErrorLogger.WithField("user_id", actor.ID).Warnf("websocket read error: %v", err)
			}
			return
		}
		wc.handle(ctx, client, msg)
	}
}

func (wc *WSController) handle(ctx context.Context, client *realtime.Client, msg inboundMessage) {
	switch msg.Event {
	case realtime.EventMarkNotificationRead:
		var payload struct {
			NotificationID uint `json:"notification_id"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.NotificationID == 0 {
			_ = client.Send(realtime.Message{Event: realtime.EventError, Data: gin.H{"message": "notification_id is required"}})
			return
		}
		n, err := wc.Notifications.MarkRead(ctx, payload.NotificationID, client.UserID)
		if err != nil {
			_ = client.Send(realtime.Message{Event: realtime.EventError, Data: gin.H{"message": utils.AsAppError(err).Message}})
			return
		}
		_ = client.Send(realtime.Message{Event: realtime.EventNotificationRead, Data: gin.H{"notification_id": n.ID}})
	default:
		utils.InfoLogger.WithFields(logrus.Fields{
			"user_id": client.UserID,
			"event":   msg.Event,
		}).Debug("ignoring websocket event")
	}
}

func (wc *WSController) ping(ctx context.Context, client *realtime.Client) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(); err != nil {
				return
			}
		}
	}
}
