package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
)

// Event names on the notification channel
const (
	EventNewNotification      = "new_notification"
	EventMarkNotificationRead = "mark_notification_read"
	EventNotificationRead     = "notification_read"
	EventStockUpdated         = "stock_updated"
	EventError                = "error"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// writeWait bounds a single write so one stalled peer cannot hold up a
// broadcast.
const writeWait = 10 * time.Second

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	SetWriteDeadline(t time.Time) error
	WriteJSON(v interface{}) error
	Close() error
}

// Client is one live connection of an authenticated user.
type Client struct {
	UserID uint
	Role   string

	conn    Conn
	writeMu sync.Mutex
}

func NewClient(userID uint, role string, conn Conn) *Client {
	return &Client{UserID: userID, Role: role, conn: conn}
}

// Send serializes writes on the connection.
func (c *Client) Send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

type pinger interface {
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

// Ping sends a websocket ping when the connection supports control frames.
func (c *Client) Ping() error {
	p, ok := c.conn.(pinger)
	if !ok {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return p.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// close does not wait for writeMu: closing the socket is what unblocks a
// writer stuck on a dead peer.
func (c *Client) close() {
	_ = c.conn.Close()
}

// Hub maps connected users to their connection and groups connections by
// role. One connection per user: a newer connection replaces the older one
// after the older one is closed.
type Hub struct {
	mu    sync.RWMutex
	users map[uint]*Client
	roles map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		users: make(map[uint]*Client),
		roles: make(map[string]map[*Client]struct{}),
	}
}

// Register adds c and returns the connection it displaced, already closed.
func (h *Hub) Register(c *Client) *Client {
	h.mu.Lock()
	previous := h.users[c.UserID]
	if previous != nil {
		h.removeLocked(previous)
	}
	h.users[c.UserID] = c
	members, ok := h.roles[c.Role]
	if !ok {
		members = make(map[*Client]struct{})
		h.roles[c.Role] = members
	}
	members[c] = struct{}{}
	h.mu.Unlock()

	if previous != nil {
		previous.close()
		utils.InfoLogger.WithFields(logrus.Fields{"user_id": c.UserID}).Info("replaced existing notification connection")
	}
	utils.InfoLogger.WithFields(logrus.Fields{"user_id": c.UserID, "role": c.Role}).Info("notification client connected")
	return previous
}

// Unregister removes c if it is still the registered connection of its user.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	h.mu.Unlock()

	c.close()
	if removed {
		utils.InfoLogger.WithFields(logrus.Fields{"user_id": c.UserID}).Info("notification client disconnected")
	}
}

func (h *Hub) removeLocked(c *Client) bool {
	if members, ok := h.roles[c.Role]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.roles, c.Role)
		}
	}
	if current, ok := h.users[c.UserID]; ok && current == c {
		delete(h.users, c.UserID)
		return true
	}
	return false
}

// SendToUser pushes an event to userID. It reports whether the user was
// connected and the write succeeded.
func (h *Hub) SendToUser(userID uint, event string, data interface{}) bool {
	h.mu.RLock()
	c := h.users[userID]
	h.mu.RUnlock()
	if c == nil {
		return false
	}
	return h.deliver(c, Message{Event: event, Data: data})
}

// SendToRole pushes to every connection of role and returns how many got it.
func (h *Hub) SendToRole(role, event string, data interface{}) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.roles[role]))
	for c := range h.roles[role] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	return h.deliverAll(targets, Message{Event: event, Data: data})
}

func (h *Hub) Broadcast(event string, data interface{}) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.users))
	for _, c := range h.users {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	return h.deliverAll(targets, Message{Event: event, Data: data})
}

func (h *Hub) deliverAll(targets []*Client, msg Message) int {
	sent := 0
	for _, c := range targets {
		if h.deliver(c, msg) {
			sent++
		}
	}
	return sent
}

func (h *Hub) deliver(c *Client, msg Message) bool {
	if err := c.Send(msg); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"user_id": c.UserID,
			"event":   msg.Event,
		}).Warnf("dropping notification client after write error: %v", err)
		h.Unregister(c)
		return false
	}
	return true
}

func (h *Hub) IsConnected(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.users[userID]
	return ok
}

func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

// CloseAll disconnects everyone, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.users))
	for _, c := range h.users {
		clients = append(clients, c)
	}
	h.users = make(map[uint]*Client)
	h.roles = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
