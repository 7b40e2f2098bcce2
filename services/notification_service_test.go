package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/realtime"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
)

func TestNotificationCreatePushesToConnectedUser(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "Wholesaler One", models.RoleWholesaler)
	notifier := newFakeNotifier(user.ID)
	svc := NewNotificationService(db, notifier)

	n, err := svc.Create(context.Background(), NotificationInput{
		UserID:     user.ID,
		Title:      "Low Stock Alert",
		Message:    "Medicine X is running low",
		Type:       models.NotificationLowStock,
		EntityType: "stock",
	})
	require.NoError(t, err)
	assert.False(t, n.IsRead)
	require.NotNil(t, n.EntityType)
	assert.Nil(t, n.EntityID)

	msgs := notifier.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, realtime.EventNewNotification, msgs[0].Event)
	assert.Equal(t, user.ID, msgs[0].UserID)
}

func TestNotificationCreateValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(db, nil)

	tests := []struct {
		name string
		in   NotificationInput
	}{
		{name: "no user", in: NotificationInput{Title: "t", Message: "m", Type: models.NotificationSystem}},
		{name: "no title", in: NotificationInput{UserID: 1, Message: "m", Type: models.NotificationSystem}},
		{name: "no message", in: NotificationInput{UserID: 1, Title: "t", Type: models.NotificationSystem}},
		{name: "bad type", in: NotificationInput{UserID: 1, Title: "t", Message: "m", Type: "promo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			assert.True(t, errors.Is(err, utils.ErrValidation))
		})
	}

	var count int64
	db.Model(&models.Notification{}).Count(&count)
	assert.Zero(t, count)
}

func TestMarkReadOwnership(t *testing.T) {
	db := setupTestDB(t)
	alice := createUser(t, db, "Alice", models.RoleClient)
	bob := createUser(t, db, "Bob", models.RoleClient)
	svc := NewNotificationService(db, nil)
	ctx := context.Background()

	n := svc.NotifySystemEvent(ctx, alice.ID, "Welcome", "Hello Alice")
	require.NotNil(t, n)

	_, err := svc.MarkRead(ctx, n.ID, bob.ID)
	assert.True(t, errors.Is(err, utils.ErrForbidden))

	_, err = svc.MarkRead(ctx, 9999, alice.ID)
	assert.True(t, errors.Is(err, utils.ErrNotFound))

	read, err := svc.MarkRead(ctx, n.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	count, err := svc.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkAllReadOnlyTouchesOwnNotifications(t *testing.T) {
	db := setupTestDB(t)
	alice := createUser(t, db, "Alice", models.RoleClient)
	bob := createUser(t, db, "Bob", models.RoleClient)
	svc := NewNotificationService(db, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		svc.NotifySystemEvent(ctx, alice.ID, "A", "for alice")
	}
	svc.NotifySystemEvent(ctx, bob.ID, "B", "for bob")
	svc.NotifySystemEvent(ctx, bob.ID, "B", "for bob")

	updated, err := svc.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)

	aliceUnread, _ := svc.UnreadCount(ctx, alice.ID)
	bobUnread, _ := svc.UnreadCount(ctx, bob.ID)
	assert.Zero(t, aliceUnread)
	assert.Equal(t, int64(2), bobUnread)
}

func TestNotificationListPagination(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "Owner", models.RolePharmacyOwner)
	svc := NewNotificationService(db, nil)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		svc.NotifySystemEvent(ctx, user.ID, "Event", "message")
	}
	first, err := svc.MarkRead(ctx, 1, user.ID)
	require.NoError(t, err)
	require.True(t, first.IsRead)

	items, page, err := svc.List(ctx, user.ID, NotificationFilter{Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.Equal(t, int64(12), page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)

	unread, page, err := svc.List(ctx, user.ID, NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 10)
	assert.Equal(t, int64(11), page.TotalCount)
	assert.Greater(t, unread[0].ID, unread[1].ID)
}

func TestNotifyRoleDoesNotPersist(t *testing.T) {
	db := setupTestDB(t)
	notifier := newFakeNotifier()
	svc := NewNotificationService(db, notifier)

	sent := svc.NotifyRole(models.RoleWholesaler, "Maintenance", "Tonight at 23:00", "")
	assert.Equal(t, 1, sent)

	msgs := notifier.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "wholesaler", msgs[0].Role)
	assert.Equal(t, models.NotificationSystem, msgs[0].Data.(RoleNotification).Type)

	var count int64
	db.Model(&models.Notification{}).Count(&count)
	assert.Zero(t, count)
}

func TestNotificationHelpersWording(t *testing.T) {
	db := setupTestDB(t)
	wholesaler := createUser(t, db, "Wholesaler", models.RoleWholesaler)
	owner := createUser(t, db, "Owner", models.RolePharmacyOwner)
	svc := NewNotificationService(db, nil)
	ctx := context.Background()

	po := &models.PurchaseOrder{ID: 7, WholesalerID: wholesaler.ID, TotalAmount: decimal.NewFromInt(12500)}
	n := svc.NotifyNewPurchaseOrder(ctx, po)
	require.NotNil(t, n)
	assert.Equal(t, "New Purchase Order", n.Title)
	assert.Equal(t, "New purchase order received from pharmacy for 12 500,00 DZD", n.Message)
	assert.Equal(t, uint(7), *n.EntityID)

	n = svc.NotifyCriticalExpiration(ctx, owner.ID, 3, 5)
	require.NotNil(t, n)
	assert.Equal(t, "Critical Expiration Alert", n.Title)
	assert.Equal(t, "Stock item is expiring in 5 days!", n.Message)

	n = svc.NotifyDeliveryUpdate(ctx, owner.ID, 7, models.PurchaseOrderShipped)
	require.NotNil(t, n)
	assert.Equal(t, "Your purchase order #7 status updated to: shipped", n.Message)

	tr := &models.TransportRequest{ID: 4, WholesalerID: wholesaler.ID}
	svc.NotifyDeliveryConfirmation(ctx, tr, owner.ID)
	var confirmations int64
	db.Model(&models.Notification{}).Where("title = ?", "Delivery Confirmed").Count(&confirmations)
	assert.Equal(t, int64(2), confirmations)

	// an unknown recipient is logged, not returned
	assert.Nil(t, svc.NotifySystemEvent(ctx, 0, "x", "y"))
}
