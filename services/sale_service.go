package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
	"gorm.io/gorm"
)

type SaleItemInput struct {
	StockID  uint `json:"stock_id"`
	Quantity int  `json:"quantity"`
	// UnitPrice defaults to the medicine's price.
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type RecordSaleInput struct {
	PharmacyID     uint                     `json:"pharmacy_id"`
	ClientID       *uint                    `json:"client_id"`
	Items          []SaleItemInput          `json:"items"`
	DiscountAmount decimal.Decimal          `json:"discount_amount"`
	PaymentMethod  models.SalePaymentMethod `json:"payment_method"`
}

var errInsufficientStock = errors.New("insufficient stock")

// SaleService records point of sale transactions.
type SaleService struct {
	db    *gorm.DB
	audit *AuditService
	now   func() time.Time
}

func NewSaleService(db *gorm.DB, audit *AuditService) *SaleService {
	return &SaleService{db: db, audit: audit, now: time.Now}
}

// RecordSale stores a sale and its items. Cash sales deduct stock right
// away; online sales leave it to payment verification.
func (s *SaleService) RecordSale(ctx context.Context, actor Actor, in RecordSaleInput) (*models.Sale, error) {
	if len(in.Items) == 0 {
		return nil, utils.NewValidationError("items", "must not be empty")
	}
	// Never defaulted: only online sales can be paid through the gateway.
	if in.PaymentMethod == "" {
		return nil, utils.NewValidationError("payment_method", "is required")
	}
	if !in.PaymentMethod.Valid() {
		return nil, utils.NewValidationError("payment_method", "must be cash or online")
	}
	if in.DiscountAmount.IsNegative() {
		return nil, utils.NewValidationError("discount_amount", "must not be negative")
	}

	var cashier models.User
	if err := s.db.WithContext(ctx).First(&cashier, actor.ID).Error; err != nil {
		return nil, utils.NewUnauthorizedError("User not found")
	}
	pharmacyID := in.PharmacyID
	if cashier.PharmacyID != nil {
		if pharmacyID != 0 && pharmacyID != *cashier.PharmacyID {
			return nil, utils.NewForbiddenError("Cashier is not assigned to this pharmacy")
		}
		pharmacyID = *cashier.PharmacyID
	}
	if pharmacyID == 0 {
		return nil, utils.NewValidationError("pharmacy_id", "is required")
	}

	if in.ClientID != nil {
		var client models.User
		err := s.db.WithContext(ctx).Where("id = ? AND role = ?", *in.ClientID, models.RoleClient).First(&client).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("Client not found")
		}
		if err != nil {
			return nil, utils.NewInternalError(err)
		}
	}

	sale := models.Sale{
		CashierID:      actor.ID,
		PharmacyID:     pharmacyID,
		ClientID:       in.ClientID,
		DiscountAmount: in.DiscountAmount,
		PaymentMethod:  in.PaymentMethod,
	}

	total := decimal.Zero
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, utils.NewValidationError("quantity", "must be greater than zero")
		}
		var stock models.Stock
		err := s.db.WithContext(ctx).Preload("Medicine").
			Where("id = ? AND pharmacy_id = ?", item.StockID, pharmacyID).
			First(&stock).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError(fmt.Sprintf("Stock with ID %d not found.", item.StockID))
		}
		if err != nil {
			return nil, utils.NewInternalError(err)
		}
		if stock.StockQuantity < item.Quantity {
			return nil, utils.NewConflictError(fmt.Sprintf("Insufficient stock for item %d.", item.StockID),
				map[string]interface{}{"stock_id": item.StockID, "available": stock.StockQuantity})
		}

		price := decimal.Zero
		if stock.Medicine != nil {
			price = stock.Medicine.PriceForOne
		}
		if item.UnitPrice != nil {
			price = *item.UnitPrice
		}
		if price.IsNegative() {
			return nil, utils.NewValidationError("unit_price", "must not be negative")
		}
		subtotal := price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(subtotal)
		sale.Items = append(sale.Items, models.SaleItem{
			StockID:   item.StockID,
			Quantity:  item.Quantity,
			UnitPrice: price,
			Subtotal:  subtotal,
		})
	}
	if in.DiscountAmount.GreaterThan(total) {
		return nil, utils.NewValidationError("discount_amount", "must not exceed the total")
	}
	sale.TotalAmount = total

	if sale.PaymentMethod == models.SalePaymentCash {
		completed := models.PaymentStatusCompleted
		now := s.now()
		sale.PaymentStatus = &completed
		sale.PaymentCompletedAt = &now
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sale).Error; err != nil {
			return err
		}
		if sale.PaymentMethod != models.SalePaymentCash {
			return nil
		}
		skipped, err := deductSaleStock(tx, sale.Items)
		if err != nil {
			return err
		}
		if len(skipped) > 0 {
			return fmt.Errorf("stock %d: %w", skipped[0].StockID, errInsufficientStock)
		}
		return nil
	})
	if errors.Is(err, errInsufficientStock) {
		return nil, utils.NewConflictError("Insufficient stock, sale was not recorded", nil)
	}
	if err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("record sale: %w", err))
	}

	if s.audit != nil {
		s.audit.Record(ctx, AuditEntry{
			Actor:      actor,
			EntityType: AuditEntitySale,
			EntityID:   strconv.FormatUint(uint64(sale.ID), 10),
			Action:     AuditSaleRecorded,
			Description: fmt.Sprintf("Sale recorded (%s) - Total: %s, Discount: %s",
				sale.PaymentMethod, utils.FormatCurrencyDZD(sale.TotalAmount), utils.FormatCurrencyDZD(sale.DiscountAmount)),
		})
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"sale_id":        sale.ID,
		"pharmacy_id":    sale.PharmacyID,
		"payment_method": sale.PaymentMethod,
		"items":          len(sale.Items),
	}).Info("sale recorded")

	return &sale, nil
}
