package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/realtime"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
	"gorm.io/gorm"
)

// Notifier pushes events to live connections. *realtime.Hub implements it.
type Notifier interface {
	SendToUser(userID uint, event string, data interface{}) bool
	SendToRole(role, event string, data interface{}) int
}

const (
	entityPurchaseOrder    = "purchase_order"
	entityTransportRequest = "transport_request"
	entityStock            = "stock"
	entityPayment          = "payment_transaction"
)

type NotificationInput struct {
	UserID     uint
	Title      string
	Message    string
	Type       models.NotificationType
	EntityType string
	EntityID   uint
}

type NotificationFilter struct {
	UnreadOnly bool
	Page       int
	Limit      int
}

// RoleNotification is what role subscribers receive; it is never stored.
type RoleNotification struct {
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Type      models.NotificationType `json:"type"`
	CreatedAt time.Time               `json:"created_at"`
}

type NotificationService struct {
	db       *gorm.DB
	notifier Notifier
}

func NewNotificationService(db *gorm.DB, notifier Notifier) *NotificationService {
	return &NotificationService{db: db, notifier: notifier}
}

// Create stores an unread notification and pushes it to the user when online.
func (s *NotificationService) Create(ctx context.Context, in NotificationInput) (*models.Notification, error) {
	if in.UserID == 0 {
		return nil, utils.NewValidationError("user_id", "is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, utils.NewValidationError("title", "is required")
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, utils.NewValidationError("message", "is required")
	}
	if !in.Type.Valid() {
		return nil, utils.NewValidationError("type", "is not a known notification type")
	}

	n := models.Notification{
		UserID:  in.UserID,
		Title:   in.Title,
		Message: in.Message,
		Type:    in.Type,
	}
	if in.EntityType != "" {
		et := in.EntityType
		n.EntityType = &et
	}
	if in.EntityID != 0 {
		id := in.EntityID
		n.EntityID = &id
	}

	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("create notification: %w", err))
	}

	if s.notifier != nil {
		s.notifier.SendToUser(n.UserID, realtime.EventNewNotification, n)
	}
	return &n, nil
}

// NotifyRole pushes to every connected user of role. Nothing is persisted.
func (s *NotificationService) NotifyRole(role models.Role, title, message string, typ models.NotificationType) int {
	if s.notifier == nil {
		return 0
	}
	if typ == "" {
		typ = models.NotificationSystem
	}
	return s.notifier.SendToRole(string(role), realtime.EventNewNotification, RoleNotification{
		Title:     title,
		Message:   message,
		Type:      typ,
		CreatedAt: time.Now(),
	})
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).First(&n, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("Notification not found")
	}
	if err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("load notification %d: %w", id, err))
	}
	if n.UserID != userID {
		return nil, utils.NewForbiddenError("You cannot modify this notification")
	}
	if n.IsRead {
		return &n, nil
	}

	if err := s.db.WithContext(ctx).Model(&n).Update("is_read", true).Error; err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("mark notification %d read: %w", id, err))
	}
	n.IsRead = true
	return &n, nil
}

// MarkAllRead returns how many notifications changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, utils.NewInternalError(fmt.Errorf("mark all read for user %d: %w", userID, res.Error))
	}
	return res.RowsAffected, nil
}

func (s *NotificationService) List(ctx context.Context, userID uint, f NotificationFilter) ([]models.Notification, utils.Pagination, error) {
	page, limit := utils.NormalizePage(f.Page, f.Limit)

	q := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if f.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, utils.Pagination{}, utils.NewInternalError(err)
	}

	var items []models.Notification
	err := q.Order("created_at DESC, id DESC").
		Offset(utils.Offset(page, limit)).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, utils.Pagination{}, utils.NewInternalError(err)
	}
	return items, utils.NewPagination(page, limit, total), nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, utils.NewInternalError(err)
	}
	return count, nil
}

// notify is used by the helpers below: producers never fail on a
// notification error, it is only logged.
func (s *NotificationService) notify(ctx context.Context, in NotificationInput) *models.Notification {
	n, err := s.Create(ctx, in)
	if err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"user_id": in.UserID,
			"title":   in.Title,
		}).Errorf("failed to send notification: %v", err)
		return nil
	}
	return n
}

func (s *NotificationService) NotifyNewPurchaseOrder(ctx context.Context, po *models.PurchaseOrder) *models.Notification {
	return s.notify(ctx, NotificationInput{
		UserID:     po.WholesalerID,
		Title:      "New Purchase Order",
		Message:    fmt.Sprintf("New purchase order received from pharmacy for %s", utils.FormatCurrencyDZD(po.TotalAmount)),
		Type:       models.NotificationNewOrder,
		EntityType: entityPurchaseOrder,
		EntityID:   po.ID,
	})
}

func (s *NotificationService) NotifyLowStock(ctx context.Context, wholesalerID uint, medicineName string, quantity int) *models.Notification {
	return s.notify(ctx, NotificationInput{
		UserID:     wholesalerID,
		Title:      "Low Stock Alert",
		Message:    fmt.Sprintf("Medicine %s is running low (%d units remaining)", medicineName, quantity),
		Type:       models.NotificationLowStock,
		EntityType: entityStock,
	})
}

func (s *NotificationService) NotifyExpiringStock(ctx context.Context, wholesalerID uint, medicineName string, expiresAt time.Time) *models.Notification {
	return s.notify(ctx, NotificationInput{
		UserID:     wholesalerID,
		Title:      "Expiring Stock Alert",
		Message:    fmt.Sprintf("Medicine %s expires on %s", medicineName, expiresAt.Format("2006-01-02")),
		Type:       models.NotificationExpiringStock,
		EntityType: entityStock,
	})
}

// NotifyDeliveryUpdate goes to the pharmacy owner of the order.
func (s *NotificationService) NotifyDeliveryUpdate(ctx context.Context, ownerID, purchaseOrderID uint, status models.PurchaseOrderStatus) *models.Notification {
	return s.notify(ctx, NotificationInput{
		UserID:     ownerID,
		Title:      "Delivery Update",
		Message:    fmt.Sprintf("Your purchase order #%d status updated to: %s", purchaseOrderID, status),
		Type:       models.NotificationDeliveryUpdate,
		EntityType: entityPurchaseOrder,
		EntityID:   purchaseOrderID,
	})
}

func (s *NotificationService) NotifyTransportRequest(ctx context.Context, managerID uint, tr *models.TransportRequest) *models.Notification {
	return s.notify(ctx, NotificationInput{
		UserID:     managerID,
		Title:      "New Transport Request",
		Message:    "New transport request received for delivery to pharmacy",
		Type:       models.NotificationNewOrder,
		EntityType: entityTransportRequest,
		EntityID:   tr.ID,
	})
}

// NotifyDeliveryConfirmation tells the wholesaler and the pharmacy owner.
func (s *NotificationService) NotifyDeliveryConfirmation(ctx context.Context, tr *models.TransportRequest, pharmacyOwnerID uint) {
	s.notify(ctx, NotificationInput{
		UserID:     tr.WholesalerID,
		Title:      "Delivery Confirmed",
		Message:    "Delivery to pharmacy has been confirmed",
		Type:       models.NotificationDeliveryUpdate,
		EntityType: entityTransportRequest,
		EntityID:   tr.ID,
	})
	if pharmacyOwnerID == 0 {
		return
	}
	s.notify(ctx, NotificationInput{
		UserID:     pharmacyOwnerID,
		Title:      "Delivery Confirmed",
		Message:    "Your order has been delivered and confirmed",
		Type:       models.NotificationDeliveryUpdate,
		EntityType: entityTransportRequest,
		EntityID:   tr.ID,
	})
}

func (s *NotificationService) NotifyCriticalExpiration(ctx context.Context, userID uint, stockID uint, daysLeft int) *models.Notification {
	return s.notify(ctx, NotificationInput{
		UserID:     userID,
		Title:      "Critical Expiration Alert",
		Message:    fmt.Sprintf("Stock item is expiring in %d days!", daysLeft),
		Type:       models.NotificationExpiringStock,
		EntityType: entityStock,
		EntityID:   stockID,
	})
}

// NotifyPaymentCompleted tells the payee user that money arrived.
func (s *NotificationService) NotifyPaymentCompleted(ctx context.Context, tx *models.PaymentTransaction) *models.Notification {
	if tx.PayeeKind != models.PayeeKindUser {
		return nil
	}
	return s.notify(ctx, NotificationInput{
		UserID:     tx.PayeeID,
		Title:      "Payment Received",
		Message:    fmt.Sprintf("Payment %s of %s has been completed", tx.PaymentReference, utils.FormatCurrencyDZD(tx.Amount)),
		Type:       models.NotificationSystem,
		EntityType: entityPayment,
		EntityID:   tx.ID,
	})
}

func (s *NotificationService) NotifySystemEvent(ctx context.Context, userID uint, title, message string) *models.Notification {
	return s.notify(ctx, NotificationInput{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    models.NotificationSystem,
	})
}
