package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// errStatusRaced means another writer moved the transaction off the status
// the verification started from.
var errStatusRaced = errors.New("payment status changed concurrently")

// PaymentService is the payment transaction ledger. It owns every write to
// payment_transactions and the stock deduction that follows a successful
// client purchase.
type PaymentService struct {
	db            *gorm.DB
	gateway       PaymentGateway
	audit         *AuditService
	monitor       *PaymentMonitor
	events        PaymentEventPublisher
	notifications *NotificationService
	saleLocks     *utils.KeyedMutex
	now           func() time.Time
}

func NewPaymentService(db *gorm.DB, gateway PaymentGateway, audit *AuditService, monitor *PaymentMonitor,
	events PaymentEventPublisher, notifications *NotificationService) *PaymentService {
	if audit == nil {
		audit = NewAuditService(db)
	}
	if monitor == nil {
		monitor = NewPaymentMonitor()
	}
	if events == nil {
		events = NoopPaymentPublisher{}
	}
	return &PaymentService{
		db:            db,
		gateway:       gateway,
		audit:         audit,
		monitor:       monitor,
		events:        events,
		notifications: notifications,
		saleLocks:     utils.NewKeyedMutex(),
		now:           time.Now,
	}
}

func (s *PaymentService) Monitor() *PaymentMonitor {
	return s.monitor
}

type ClientPurchaseInput struct {
	SaleID      uint   `json:"sale_id"`
	ClientEmail string `json:"client_email"`
}

type WholesalerPaymentInput struct {
	WholesalerID uint            `json:"wholesaler_id"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	StockIDs     []uint          `json:"stock_ids"`
}

type LogisticsPaymentInput struct {
	LogisticsCenterID uint            `json:"logistics_center_id"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description"`
	DeliveryDetails   json.RawMessage `json:"delivery_details"`
}

type VerifyInput struct {
	PaymentType      models.PaymentType `json:"-"`
	SaleID           uint               `json:"sale_id"`
	PaymentReference string             `json:"payment_reference"`
	OrderNumber      string             `json:"order_number"`
}

type SaleDetails struct {
	ID             uint            `json:"id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	Pharmacy       string          `json:"pharmacy"`
	Client         string          `json:"client"`
}

type InitiateResult struct {
	PaymentData json.RawMessage            `json:"payment_data"`
	Transaction *models.PaymentTransaction `json:"payment_transaction"`
	SaleDetails *SaleDetails               `json:"sale_details,omitempty"`
}

// SkippedItem is a sale item whose stock could not be deducted.
type SkippedItem struct {
	SaleItemID uint   `json:"sale_item_id"`
	StockID    uint   `json:"stock_id"`
	Quantity   int    `json:"quantity"`
	Reason     string `json:"reason"`
}

type VerifyResult struct {
	PaymentStatus  models.PaymentStatus       `json:"payment_status"`
	PaymentDetails json.RawMessage            `json:"payment_details,omitempty"`
	Transaction    *models.PaymentTransaction `json:"payment_transaction"`
	OrderNumber    string                     `json:"order_number"`
	SaleUpdated    bool                       `json:"sale_updated"`
	SkippedItems   []SkippedItem              `json:"skipped_items,omitempty"`
}

type ReceiptResult struct {
	Receipt     map[string]interface{}     `json:"receipt"`
	Transaction *models.PaymentTransaction `json:"payment_transaction,omitempty"`
}

type EmailReceiptInput struct {
	OrderNumber string `json:"order_number"`
	Email       string `json:"email"`
}

type EmailReceiptResult struct {
	Result      map[string]interface{} `json:"result"`
	EmailSentTo string                 `json:"email_sent_to"`
}

// InitiateClientPurchase is run by a cashier on behalf of a client. At most
// one non failed payment may exist per sale.
func (s *PaymentService) InitiateClientPurchase(ctx context.Context, actor Actor, in ClientPurchaseInput) (*InitiateResult, error) {
	if in.SaleID == 0 {
		return nil, utils.NewValidationError("sale_id", "is required")
	}
	email := strings.TrimSpace(strings.ToLower(in.ClientEmail))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, utils.NewValidationError("client_email", "must be a valid email address")
	}

	var client models.User
	err := s.db.WithContext(ctx).Where("email = ? AND role = ?", email, models.RoleClient).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("Client not found")
	}
	if err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("load client: %w", err))
	}

	var sale models.Sale
	err = s.db.WithContext(ctx).Preload("Pharmacy").First(&sale, in.SaleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("Sale not found")
	}
	if err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("load sale %d: %w", in.SaleID, err))
	}
	if sale.Pharmacy == nil {
		return nil, utils.NewInternalError(fmt.Errorf("sale %d has no pharmacy", sale.ID))
	}
	if sale.ClientID != nil && *sale.ClientID != client.ID {
		return nil, utils.NewConflictError("Sale is already associated with a different client.", nil)
	}
	if sale.PaymentMethod == models.SalePaymentCash {
		return nil, utils.NewConflictError("Sale was paid in cash", nil)
	}

	unlock := s.saleLocks.Lock(strconv.FormatUint(uint64(sale.ID), 10))
	defer unlock()

	var existing models.PaymentTransaction
	err = s.db.WithContext(ctx).
		Where("related_sale_id = ? AND payment_status NOT IN ?", sale.ID,
			[]models.PaymentStatus{models.PaymentStatusFailed, models.PaymentStatusCancelled}).
		Order("created_at DESC, id DESC").
		First(&existing).Error
	if err == nil {
		return nil, utils.NewConflictError("Payment already exists for this sale",
			map[string]interface{}{"existing_payment": existing})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewInternalError(fmt.Errorf("check existing payment: %w", err))
	}

	amount := sale.FinalAmount()
	if !amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be greater than zero")
	}

	resp, err := s.initiateAtGateway(ctx, amount)
	if err != nil {
		return nil, err
	}

	payeeRole := models.RolePharmacyOwner
	saleID := sale.ID
	tx := models.PaymentTransaction{
		PayerID:          client.ID,
		PayerRole:        models.RoleClient,
		PayeeID:          sale.Pharmacy.OwnerID,
		PayeeKind:        models.PayeeKindUser,
		PayeeRole:        &payeeRole,
		Amount:           amount,
		Description:      fmt.Sprintf("Purchase payment for sale %d", sale.ID),
		PaymentType:      models.PaymentTypeClientPurchase,
		PaymentReference: resp.Resource.ID,
		PaymentStatus:    models.PaymentStatusProcessing,
		GatewayResponse:  datatypes.JSON(resp.Data),
		RelatedSaleID:    &saleID,
	}

	err = s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Create(&tx).Error; err != nil {
			return err
		}
		processing := models.PaymentStatusProcessing
		updates := map[string]interface{}{
			"payment_reference": tx.PaymentReference,
			"payment_status":    processing,
		}
		if sale.ClientID == nil {
			updates["client_id"] = client.ID
		}
		return db.Model(&models.Sale{}).Where("id = ?", sale.ID).Updates(updates).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"sale_id":           sale.ID,
			"payment_reference": tx.PaymentReference,
		}).Warn("gateway payment created but a live payment already exists for the sale")
		return nil, utils.NewConflictError("Payment already exists for this sale", nil)
	}
	if err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("record client purchase payment: %w", err))
	}

	s.afterInitiate(ctx, actor, &tx, fmt.Sprintf("Cashier initiated payment for client %s for sale %d - Amount: %s",
		client.Email, sale.ID, utils.FormatCurrencyDZD(amount)))

	return &InitiateResult{
		PaymentData: resp.Data,
		Transaction: &tx,
		SaleDetails: &SaleDetails{
			ID:             sale.ID,
			TotalAmount:    sale.TotalAmount,
			DiscountAmount: sale.DiscountAmount,
			FinalAmount:    amount,
			Pharmacy:       sale.Pharmacy.Name,
			Client:         client.Email,
		},
	}, nil
}

func (s *PaymentService) InitiatePharmacyToWholesaler(ctx context.Context, actor Actor, in WholesalerPaymentInput) (*InitiateResult, error) {
	if actor.Role != models.RolePharmacyOwner {
		return nil, utils.NewForbiddenError("Only pharmacy owners can make payments to wholesalers")
	}
	if in.WholesalerID == 0 {
		return nil, utils.NewValidationError("wholesaler_id", "is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, utils.NewValidationError("description", "is required")
	}
	if !in.Amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be greater than zero")
	}

	var wholesaler models.User
	err := s.db.WithContext(ctx).Where("id = ? AND role = ?", in.WholesalerID, models.RoleWholesaler).First(&wholesaler).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("Wholesaler not found")
	}
	if err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("load wholesaler: %w", err))
	}

	resp, err := s.initiateAtGateway(ctx, in.Amount)
	if err != nil {
		return nil, err
	}

	payeeRole := models.RoleWholesaler
	tx := models.PaymentTransaction{
		PayerID:          actor.ID,
		PayerRole:        actor.Role,
		PayeeID:          wholesaler.ID,
		PayeeKind:        models.PayeeKindUser,
		PayeeRole:        &payeeRole,
		Amount:           in.Amount,
		Description:      in.Description,
		PaymentType:      models.PaymentTypePharmacyToWholesaler,
		PaymentReference: resp.Resource.ID,
		PaymentStatus:    models.PaymentStatusProcessing,
		GatewayResponse:  datatypes.JSON(resp.Data),
		RelatedStockIDs:  datatypes.JSONSlice[uint](in.StockIDs),
	}
	if err := s.db.WithContext(ctx).Create(&tx).Error; err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("record wholesaler payment: %w", err))
	}

	s.afterInitiate(ctx, actor, &tx, fmt.Sprintf("Pharmacy owner initiated payment to wholesaler %s - Amount: %s",
		wholesaler.Name, utils.FormatCurrencyDZD(in.Amount)))

	return &InitiateResult{PaymentData: resp.Data, Transaction: &tx}, nil
}

func (s *PaymentService) InitiateLogistics(ctx context.Context, actor Actor, in LogisticsPaymentInput) (*InitiateResult, error) {
	if actor.Role != models.RoleWholesaler {
		return nil, utils.NewForbiddenError("Only wholesalers can make logistics payments")
	}
	if in.LogisticsCenterID == 0 {
		return nil, utils.NewValidationError("logistics_center_id", "is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, utils.NewValidationError("description", "is required")
	}
	if !in.Amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be greater than zero")
	}
	if len(in.DeliveryDetails) > 0 && !json.Valid(in.DeliveryDetails) {
		return nil, utils.NewValidationError("delivery_details", "must be valid JSON")
	}

	var center models.LogisticsCenter
	err := s.db.WithContext(ctx).First(&center, in.LogisticsCenterID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("Logistics center not found")
	}
	if err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("load logistics center: %w", err))
	}

	resp, err := s.initiateAtGateway(ctx, in.Amount)
	if err != nil {
		return nil, err
	}

	tx := models.PaymentTransaction{
		PayerID:          actor.ID,
		PayerRole:        actor.Role,
		PayeeID:          center.ID,
		PayeeKind:        models.PayeeKindLogisticsCenter,
		Amount:           in.Amount,
		Description:      in.Description,
		PaymentType:      models.PaymentTypeWholesalerToLogistics,
		PaymentReference: resp.Resource.ID,
		PaymentStatus:    models.PaymentStatusProcessing,
		GatewayResponse:  datatypes.JSON(resp.Data),
		DeliveryDetails:  datatypes.JSON(in.DeliveryDetails),
	}
	if err := s.db.WithContext(ctx).Create(&tx).Error; err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("record logistics payment: %w", err))
	}

	s.afterInitiate(ctx, actor, &tx, fmt.Sprintf("Wholesaler initiated logistics payment to %s - Amount: %s",
		center.Name, utils.FormatCurrencyDZD(in.Amount)))

	return &InitiateResult{PaymentData: resp.Data, Transaction: &tx}, nil
}

// Verify asks the gateway for the state of order_number and applies it to
// the caller's transaction. For client purchases the sale is updated and
// stock deducted in the same database transaction, once, when the payment
// first becomes successful.
func (s *PaymentService) Verify(ctx context.Context, actor Actor, in VerifyInput) (*VerifyResult, error) {
	in.OrderNumber = strings.TrimSpace(in.OrderNumber)
	if in.OrderNumber == "" {
		return nil, utils.NewValidationError("order_number", "is required")
	}
	if !in.PaymentType.Valid() {
		return nil, utils.NewValidationError("payment_type", "is not a known payment type")
	}

	q := s.db.WithContext(ctx).Where("payer_id = ? AND payment_type = ?", actor.ID, in.PaymentType)
	var lockKey string
	if in.PaymentType == models.PaymentTypeClientPurchase {
		if in.SaleID == 0 {
			return nil, utils.NewValidationError("sale_id", "is required")
		}
		q = q.Where("related_sale_id = ?", in.SaleID)
		lockKey = strconv.FormatUint(uint64(in.SaleID), 10)
	} else {
		if strings.TrimSpace(in.PaymentReference) == "" {
			return nil, utils.NewValidationError("payment_reference", "is required")
		}
		q = q.Where("payment_reference = ?", in.PaymentReference)
		lockKey = "ref:" + in.PaymentReference
	}

	// Held across the gateway round trip so a second verify of the same
	// sale sees the status written by the first.
	unlock := s.saleLocks.Lock(lockKey)
	defer unlock()

	var tx models.PaymentTransaction
	err := q.Order("created_at DESC, id DESC").First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("Payment transaction not found")
	}
	if err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("load payment transaction: %w", err))
	}

	resp, err := s.callGateway(func() (*GatewayResponse, error) {
		return s.gateway.Show(ctx, in.OrderNumber)
	})
	if err != nil {
		return nil, err
	}

	status := mapGatewayStatus(resp.Status(), tx.PaymentReference)
	attributes := resp.AttributesJSON()

	var (
		change  models.StatusChange
		skipped []SkippedItem
		saleHit bool
	)
	err = s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.First(&tx, tx.ID).Error; err != nil {
			return err
		}
		orderNumber := in.OrderNumber
		tx.PaymentOrderNumber = &orderNumber
		change = tx.UpdatePaymentStatus(status, datatypes.JSON(attributes), s.now())

		res := db.Model(&models.PaymentTransaction{}).
			Where("id = ? AND payment_status = ?", tx.ID, change.From).
			Updates(map[string]interface{}{
				"payment_status":       tx.PaymentStatus,
				"payment_order_number": orderNumber,
				"gateway_response":     tx.GatewayResponse,
				"completed_at":         tx.CompletedAt,
				"failed_at":            tx.FailedAt,
				"failure_reason":       tx.FailureReason,
				"active_sale_id":       tx.ActiveSaleID,
				"updated_at":           s.now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return errStatusRaced
		}

		if tx.PaymentType != models.PaymentTypeClientPurchase || tx.RelatedSaleID == nil {
			return nil
		}

		var sale models.Sale
		err := db.Preload("Items").First(&sale, *tx.RelatedSaleID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		saleHit = true

		updates := map[string]interface{}{
			"payment_status":       tx.PaymentStatus,
			"payment_order_number": orderNumber,
		}
		if tx.PaymentStatus.IsSuccessful() && sale.PaymentCompletedAt == nil {
			updates["payment_completed_at"] = tx.CompletedAt
		}
		if err := db.Model(&models.Sale{}).Where("id = ?", sale.ID).Updates(updates).Error; err != nil {
			return err
		}

		if change.EnteredSuccess {
			skipped, err = deductSaleStock(db, sale.Items)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, utils.NewConflictError("Another payment for this sale is already in progress", nil)
	}
	if errors.Is(err, errStatusRaced) {
		return nil, utils.NewConflictError("Payment status changed while verifying, retry", nil)
	}
	if err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("apply payment status: %w", err))
	}

	if len(skipped) > 0 {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"payment_reference": tx.PaymentReference,
			"sale_id":           *tx.RelatedSaleID,
			"skipped_items":     len(skipped),
		}).Warn("payment completed but some stock could not be deducted")
	}

	s.monitor.RecordVerification(change, len(skipped))
	s.audit.Record(ctx, AuditEntry{
		Actor:       actor,
		EntityType:  AuditEntityPayment,
		EntityID:    strconv.FormatUint(uint64(tx.ID), 10),
		Action:      AuditPaymentVerified,
		Description: fmt.Sprintf("Payment verification (%s) - Status: %s, Order: %s", tx.PaymentType, tx.PaymentStatus, in.OrderNumber),
	})
	if change.Changed {
		s.publish(ctx, NewPaymentEvent(PaymentEventStatusChanged, &tx, change.From))
	}
	if change.EnteredSuccess && s.notifications != nil {
		s.notifications.NotifyPaymentCompleted(ctx, &tx)
	}

	return &VerifyResult{
		PaymentStatus:  tx.PaymentStatus,
		PaymentDetails: attributes,
		Transaction:    &tx,
		OrderNumber:    in.OrderNumber,
		SaleUpdated:    saleHit,
		SkippedItems:   skipped,
	}, nil
}

// deductSaleStock decrements each item's stock only if enough is left.
func deductSaleStock(db *gorm.DB, items []models.SaleItem) ([]SkippedItem, error) {
	var skipped []SkippedItem
	for _, item := range items {
		res := db.Model(&models.Stock{}).
			Where("id = ? AND stock_quantity >= ?", item.StockID, item.Quantity).
			UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", item.Quantity))
		if res.Error != nil {
			return nil, fmt.Errorf("deduct stock %d: %w", item.StockID, res.Error)
		}
		if res.RowsAffected == 0 {
			skipped = append(skipped, SkippedItem{
				SaleItemID: item.ID,
				StockID:    item.StockID,
				Quantity:   item.Quantity,
				Reason:     "insufficient stock or stock not found",
			})
		}
	}
	return skipped, nil
}

func (s *PaymentService) GetReceipt(ctx context.Context, actor Actor, orderNumber string) (*ReceiptResult, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, utils.NewValidationError("order_number", "is required")
	}

	tx, err := s.findAccessible(ctx, actor, orderNumber)
	if err != nil {
		return nil, err
	}
	if tx == nil && !actor.IsAdmin() {
		return nil, utils.NewForbiddenError("Access denied to this payment receipt")
	}

	resp, err := s.callGateway(func() (*GatewayResponse, error) {
		return s.gateway.Receipt(ctx, orderNumber)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:       actor,
		EntityType:  AuditEntityPayment,
		EntityID:    auditEntityID(tx, orderNumber),
		Action:      AuditReceiptRequested,
		Description: fmt.Sprintf("Receipt requested for order: %s", orderNumber),
	})

	return &ReceiptResult{Receipt: resp.Envelope, Transaction: tx}, nil
}

func (s *PaymentService) EmailReceipt(ctx context.Context, actor Actor, in EmailReceiptInput) (*EmailReceiptResult, error) {
	in.OrderNumber = strings.TrimSpace(in.OrderNumber)
	if in.OrderNumber == "" {
		return nil, utils.NewValidationError("order_number", "is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, utils.NewValidationError("email", "must be a valid email address")
	}

	tx, err := s.findAccessible(ctx, actor, in.OrderNumber)
	if err != nil {
		return nil, err
	}
	if tx == nil && !actor.IsAdmin() {
		return nil, utils.NewForbiddenError("Access denied to this payment")
	}

	resp, err := s.callGateway(func() (*GatewayResponse, error) {
		return s.gateway.EmailReceipt(ctx, in.OrderNumber, in.Email)
	})
	if err != nil {
		return nil, err
	}

	if tx != nil {
		now := s.now()
		err := s.db.WithContext(ctx).Model(tx).Updates(map[string]interface{}{
			"receipt_sent":    true,
			"receipt_email":   in.Email,
			"receipt_sent_at": now,
		}).Error
		if err != nil {
			return nil, utils.NewInternalError(fmt.Errorf("record receipt email: %w", err))
		}
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:       actor,
		EntityType:  AuditEntityPayment,
		EntityID:    auditEntityID(tx, in.OrderNumber),
		Action:      AuditReceiptEmailed,
		Description: fmt.Sprintf("Receipt emailed to %s for order: %s", in.Email, in.OrderNumber),
	})

	return &EmailReceiptResult{Result: resp.Envelope, EmailSentTo: in.Email}, nil
}

// findAccessible returns the transaction with orderNumber that actor paid or
// received, or nil.
func (s *PaymentService) findAccessible(ctx context.Context, actor Actor, orderNumber string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := s.db.WithContext(ctx).
		Where("payment_order_number = ?", orderNumber).
		Where(s.db.Where("payer_id = ?", actor.ID).
			Or("payee_id = ? AND payee_kind = ?", actor.ID, models.PayeeKindUser)).
		Order("created_at DESC, id DESC").
		First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewInternalError(fmt.Errorf("load payment by order number: %w", err))
	}
	return &tx, nil
}

func (s *PaymentService) initiateAtGateway(ctx context.Context, amount decimal.Decimal) (*GatewayResponse, error) {
	resp, err := s.callGateway(func() (*GatewayResponse, error) {
		return s.gateway.Initiate(ctx, utils.GatewayAmount(amount))
	})
	if err != nil {
		return nil, err
	}
	if resp.Resource == nil || resp.Resource.ID == "" {
		return nil, utils.NewGatewayFailure("Failed to initiate payment", errors.New("gateway response has no payment id"))
	}
	return resp, nil
}

func (s *PaymentService) callGateway(call func() (*GatewayResponse, error)) (*GatewayResponse, error) {
	start := time.Now()
	resp, err := call()
	s.monitor.RecordGatewayCall(time.Since(start), err)
	if err != nil {
		utils.ErrorLogger.WithField("duration", time.Since(start).String()).Errorf("payment gateway call failed: %v", err)
		return nil, err
	}
	return resp, nil
}

func (s *PaymentService) afterInitiate(ctx context.Context, actor Actor, tx *models.PaymentTransaction, description string) {
	s.monitor.RecordInitiated(tx.PaymentType)
	s.audit.Record(ctx, AuditEntry{
		Actor:       actor,
		EntityType:  AuditEntityPayment,
		EntityID:    strconv.FormatUint(uint64(tx.ID), 10),
		Action:      AuditPaymentInitiated,
		Description: description,
	})
	s.publish(ctx, NewPaymentEvent(PaymentEventInitiated, tx, ""))

	utils.InfoLogger.WithFields(logrus.Fields{
		"payment_reference": tx.PaymentReference,
		"payment_type":      tx.PaymentType,
		"amount":            tx.Amount.String(),
	}).Info("payment initiated")
}

// publish never fails the caller; the ledger row is already committed.
func (s *PaymentService) publish(ctx context.Context, event PaymentEvent) {
	if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"event":             event.Event,
			"payment_reference": event.PaymentReference,
		}).Errorf("failed to publish payment event: %v", err)
	}
}

// mapGatewayStatus turns the gateway's status text into a PaymentStatus.
// Unknown values keep the payment processing.
func mapGatewayStatus(raw, reference string) models.PaymentStatus {
	status, err := models.ParsePaymentStatus(raw)
	if err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"payment_reference": reference,
			"gateway_status":    raw,
		}).Warn("unknown gateway payment status, keeping payment processing")
		return models.PaymentStatusProcessing
	}
	return status
}

func isGatewayTimeout(err error) bool {
	return errors.Is(err, utils.ErrGatewayTimeout)
}

func auditEntityID(tx *models.PaymentTransaction, fallback string) string {
	if tx == nil {
		return fallback
	}
	return strconv.FormatUint(uint64(tx.ID), 10)
}
