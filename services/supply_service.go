package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
	"gorm.io/gorm"
)

const (
	lowStockThreshold  = 20
	expiringWithinDays = 30
)

type PurchaseOrderInput struct {
	WholesalerID uint                       `json:"wholesaler_id"`
	Items        []models.PurchaseOrderItem `json:"items"`
	Notes        string                     `json:"notes"`
}

type PurchaseOrderStatusInput struct {
	Status models.PurchaseOrderStatus `json:"status"`
	Notes  *string                    `json:"notes"`
}

type TransportRequestInput struct {
	PurchaseOrderID       uint             `json:"purchase_order_id"`
	LogisticsCenterID     uint             `json:"logistics_center_id"`
	TransportFee          *decimal.Decimal `json:"transport_fee"`
	EstimatedDeliveryDate *time.Time       `json:"estimated_delivery_date"`
	Notes                 string           `json:"notes"`
}

type WholesalerStockUpdate struct {
	Quantity       *int             `json:"quantity"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	IsAvailable    *bool            `json:"is_available"`
	ExpirationDate *time.Time       `json:"expiration_date"`
}

type DeliveryConfirmation struct {
	Notes string `json:"notes"`
}

// SupplyService covers the pharmacy to wholesaler to logistics chain.
type SupplyService struct {
	db            *gorm.DB
	notifications *NotificationService
	now           func() time.Time
}

func NewSupplyService(db *gorm.DB, notifications *NotificationService) *SupplyService {
	return &SupplyService{db: db, notifications: notifications, now: time.Now}
}

// pharmacyFor finds the pharmacy the actor works for or owns.
func (s *SupplyService) pharmacyFor(ctx context.Context, actor Actor) (*models.Pharmacy, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, actor.ID).Error; err != nil {
		return nil, utils.NewUnauthorizedError("User not found")
	}
	var pharmacy models.Pharmacy
	q := s.db.WithContext(ctx)
	if user.PharmacyID != nil {
		q = q.Where("id = ?", *user.PharmacyID)
	} else {
		q = q.Where("owner_id = ?", user.ID)
	}
	err := q.Order("id").First(&pharmacy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("No pharmacy linked to this account")
	}
	if err != nil {
		return nil, utils.NewInternalError(err)
	}
	return &pharmacy, nil
}

func (s *SupplyService) CreatePurchaseOrder(ctx context.Context, actor Actor, in PurchaseOrderInput) (*models.PurchaseOrder, error) {
	if in.WholesalerID == 0 {
		return nil, utils.NewValidationError("wholesaler_id", "is required")
	}
	if len(in.Items) == 0 {
		return nil, utils.NewValidationError("items", "must not be empty")
	}
	pharmacy, err := s.pharmacyFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	var wholesaler models.User
	err = s.db.WithContext(ctx).Where("id = ? AND role = ?", in.WholesalerID, models.RoleWholesaler).First(&wholesaler).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("Wholesaler not found")
	}
	if err != nil {
		return nil, utils.NewInternalError(err)
	}

	total := decimal.Zero
	items := make([]models.PurchaseOrderItem, 0, len(in.Items))
	for _, item := range in.Items {
		if item.MedicineID == 0 {
			return nil, utils.NewValidationError("medicine_id", "is required")
		}
		if item.Quantity <= 0 {
			return nil, utils.NewValidationError("quantity", "must be greater than zero")
		}
		if item.UnitPrice.IsNegative() {
			return nil, utils.NewValidationError("unit_price", "must not be negative")
		}
		item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(item.Subtotal)
		items = append(items, item)
	}

	po := models.PurchaseOrder{
		PharmacyID:   pharmacy.ID,
		WholesalerID: wholesaler.ID,
		Items:        items,
		TotalAmount:  total,
		Status:       models.PurchaseOrderPending,
		Notes:        in.Notes,
	}
	if err := s.db.WithContext(ctx).Create(&po).Error; err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("create purchase order: %w", err))
	}

	s.notifications.NotifyNewPurchaseOrder(ctx, &po)
	utils.InfoLogger.WithFields(logrus.Fields{
		"purchase_order_id": po.ID,
		"pharmacy_id":       po.PharmacyID,
		"wholesaler_id":     po.WholesalerID,
		"total":             po.TotalAmount.StringFixed(2),
	}).Info("purchase order created")
	return &po, nil
}

func (s *SupplyService) ListPurchaseOrders(ctx context.Context, actor Actor) ([]models.PurchaseOrder, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	switch actor.Role {
	case models.RoleWholesaler:
		q = q.Where("wholesaler_id = ?", actor.ID)
	case models.RoleAdmin:
	default:
		pharmacy, err := s.pharmacyFor(ctx, actor)
		if err != nil {
			return nil, err
		}
		q = q.Where("pharmacy_id = ?", pharmacy.ID)
	}
	var orders []models.PurchaseOrder
	if err := q.Find(&orders).Error; err != nil {
		return nil, utils.NewInternalError(err)
	}
	return orders, nil
}

func (s *SupplyService) ownedPurchaseOrder(ctx context.Context, id, wholesalerID uint) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := s.db.WithContext(ctx).Preload("Pharmacy").
		Where("id = ? AND wholesaler_id = ?", id, wholesalerID).
		First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("Purchase order not found or not authorized.")
	}
	if err != nil {
		return nil, utils.NewInternalError(err)
	}
	return &po, nil
}

// UpdatePurchaseOrderStatus lets the receiving wholesaler move an order along.
func (s *SupplyService) UpdatePurchaseOrderStatus(ctx context.Context, actor Actor, id uint, in PurchaseOrderStatusInput) (*models.PurchaseOrder, error) {
	if !in.Status.Valid() {
		return nil, utils.NewValidationError("status", "unknown purchase order status")
	}
	po, err := s.ownedPurchaseOrder(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"status": in.Status}
	if in.Notes != nil {
		updates["notes"] = *in.Notes
	}
	if err := s.db.WithContext(ctx).Model(&models.PurchaseOrder{}).Where("id = ?", po.ID).Updates(updates).Error; err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("update purchase order %d: %w", po.ID, err))
	}
	po.Status = in.Status
	if in.Notes != nil {
		po.Notes = *in.Notes
	}

	if po.Pharmacy != nil {
		s.notifications.NotifyDeliveryUpdate(ctx, po.Pharmacy.OwnerID, po.ID, po.Status)
	}
	return po, nil
}

// CreateTransportRequest hands a purchase order to a logistics center.
func (s *SupplyService) CreateTransportRequest(ctx context.Context, actor Actor, in TransportRequestInput) (*models.TransportRequest, error) {
	if in.PurchaseOrderID == 0 || in.LogisticsCenterID == 0 || in.TransportFee == nil {
		return nil, utils.NewValidationError("purchase_order_id", "purchase_order_id, logistics_center_id and transport_fee are required")
	}
	if in.TransportFee.IsNegative() {
		return nil, utils.NewValidationError("transport_fee", "must not be negative")
	}
	po, err := s.ownedPurchaseOrder(ctx, in.PurchaseOrderID, actor.ID)
	if err != nil {
		return nil, err
	}
	if po.TransportRequestID != nil {
		return nil, utils.NewConflictError("Purchase order already has a transport request", map[string]interface{}{
			"transport_request_id": *po.TransportRequestID,
		})
	}

	var center models.LogisticsCenter
	err = s.db.WithContext(ctx).First(&center, in.LogisticsCenterID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("Logistics center not found")
	}
	if err != nil {
		return nil, utils.NewInternalError(err)
	}

	tr := models.TransportRequest{
		WholesalerID:          actor.ID,
		LogisticsCenterID:     center.ID,
		DestinationPharmacyID: po.PharmacyID,
		PurchaseOrderID:       po.ID,
		TotalAmount:           po.TotalAmount,
		TransportFee:          *in.TransportFee,
		Status:                models.TransportPending,
		EstimatedDeliveryDate: in.EstimatedDeliveryDate,
		Notes:                 in.Notes,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tr).Error; err != nil {
			return err
		}
		return tx.Model(&models.PurchaseOrder{}).Where("id = ?", po.ID).Updates(map[string]interface{}{
			"transport_request_id": tr.ID,
			"status":               models.PurchaseOrderProcessing,
		}).Error
	})
	if err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("create transport request: %w", err))
	}

	if center.ManagerID != nil {
		s.notifications.NotifyTransportRequest(ctx, *center.ManagerID, &tr)
	}
	return &tr, nil
}

// UpdateWholesalerStock edits a stock row owned by the actor and warns the
// owner about low or soon expiring stock.
func (s *SupplyService) UpdateWholesalerStock(ctx context.Context, actor Actor, id uint, in WholesalerStockUpdate) (*models.WholesalerStock, error) {
	var stock models.WholesalerStock
	err := s.db.WithContext(ctx).Preload("Medicine").
		Where("id = ? AND wholesaler_id = ?", id, actor.ID).
		First(&stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("Stock item not found or not authorized.")
	}
	if err != nil {
		return nil, utils.NewInternalError(err)
	}

	updates := map[string]interface{}{}
	if in.Quantity != nil {
		if *in.Quantity < 0 {
			return nil, utils.NewValidationError("quantity", "must not be negative")
		}
		updates["quantity"] = *in.Quantity
		stock.Quantity = *in.Quantity
	}
	if in.UnitPrice != nil {
		if in.UnitPrice.IsNegative() {
			return nil, utils.NewValidationError("unit_price", "must not be negative")
		}
		updates["unit_price"] = *in.UnitPrice
		stock.UnitPrice = *in.UnitPrice
	}
	if in.IsAvailable != nil {
		updates["is_available"] = *in.IsAvailable
		stock.IsAvailable = *in.IsAvailable
	}
	if in.ExpirationDate != nil {
		updates["expiration_date"] = *in.ExpirationDate
		stock.ExpirationDate = in.ExpirationDate
	}
	if len(updates) == 0 {
		return nil, utils.NewValidationError("body", "nothing to update")
	}
	if err := s.db.WithContext(ctx).Model(&models.WholesalerStock{}).Where("id = ?", stock.ID).Updates(updates).Error; err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("update wholesaler stock %d: %w", stock.ID, err))
	}

	name := fmt.Sprintf("#%d", stock.MedicineID)
	if stock.Medicine != nil {
		name = stock.Medicine.Name
	}
	if in.Quantity != nil && stock.Quantity < lowStockThreshold {
		s.notifications.NotifyLowStock(ctx, actor.ID, name, stock.Quantity)
	}
	if in.ExpirationDate != nil && DaysLeft(*in.ExpirationDate, s.now()) <= expiringWithinDays {
		s.notifications.NotifyExpiringStock(ctx, actor.ID, name, *in.ExpirationDate)
	}
	return &stock, nil
}

// ConfirmDelivery closes a transport request. Only the manager of the
// assigned logistics center, or an admin, may confirm.
func (s *SupplyService) ConfirmDelivery(ctx context.Context, actor Actor, transportRequestID uint, in DeliveryConfirmation) (*models.TransportRequest, error) {
	var tr models.TransportRequest
	err := s.db.WithContext(ctx).First(&tr, transportRequestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("Transport request not found")
	}
	if err != nil {
		return nil, utils.NewInternalError(err)
	}

	if !actor.IsAdmin() {
		var center models.LogisticsCenter
		if err := s.db.WithContext(ctx).First(&center, tr.LogisticsCenterID).Error; err != nil {
			return nil, utils.NewForbiddenError("Not authorized to confirm this delivery")
		}
		if center.ManagerID == nil || *center.ManagerID != actor.ID {
			return nil, utils.NewForbiddenError("Not authorized to confirm this delivery")
		}
	}
	if tr.Status == models.TransportDelivered {
		return nil, utils.NewConflictError("Delivery already confirmed", nil)
	}
	if tr.Status == models.TransportCancelled {
		return nil, utils.NewConflictError("Transport request was cancelled", nil)
	}

	now := s.now()
	updates := map[string]interface{}{
		"status":               models.TransportDelivered,
		"actual_delivery_date": now,
	}
	if in.Notes != "" {
		updates["notes"] = in.Notes
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.TransportRequest{}).Where("id = ?", tr.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Model(&models.PurchaseOrder{}).Where("id = ?", tr.PurchaseOrderID).
			Update("status", models.PurchaseOrderDelivered).Error
	})
	if err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("confirm delivery %d: %w", tr.ID, err))
	}
	tr.Status = models.TransportDelivered
	tr.ActualDeliveryDate = &now
	if in.Notes != "" {
		tr.Notes = in.Notes
	}

	var pharmacy models.Pharmacy
	var ownerID uint
	if err := s.db.WithContext(ctx).First(&pharmacy, tr.DestinationPharmacyID).Error; err == nil {
		ownerID = pharmacy.OwnerID
	}
	s.notifications.NotifyDeliveryConfirmation(ctx, &tr, ownerID)

	utils.InfoLogger.WithFields(logrus.Fields{
		"transport_request_id": tr.ID,
		"purchase_order_id":    tr.PurchaseOrderID,
	}).Info("delivery confirmed")
	return &tr, nil
}

// ListTransportRequests returns the requests assigned to centers the actor
// manages, or all of them for an admin.
func (s *SupplyService) ListTransportRequests(ctx context.Context, actor Actor) ([]models.TransportRequest, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleWholesaler:
		q = q.Where("wholesaler_id = ?", actor.ID)
	default:
		q = q.Where("logistics_center_id IN (?)",
			s.db.Model(&models.LogisticsCenter{}).Select("id").Where("manager_id = ?", actor.ID))
	}
	var requests []models.TransportRequest
	if err := q.Find(&requests).Error; err != nil {
		return nil, utils.NewInternalError(err)
	}
	return requests, nil
}
