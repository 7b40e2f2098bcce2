package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentTransaction records one attempted or completed money movement.
type PaymentTransaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PayerID   uint      `gorm:"index;not null" json:"payer_id"`
	PayerRole Role      `gorm:"type:varchar(32);not null" json:"payer_role"`
	PayeeID   uint      `gorm:"index:idx_payee;not null" json:"payee_id"`
	PayeeKind PayeeKind `gorm:"type:varchar(32);index:idx_payee;not null;default:'user'" json:"payee_kind"`
	// PayeeRole is only set when PayeeKind is user.
	PayeeRole *Role `gorm:"type:varchar(32)" json:"payee_role,omitempty"`

	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Description string          `gorm:"type:varchar(500)" json:"description"`
	PaymentType PaymentType     `gorm:"type:varchar(32);index;not null" json:"payment_type"`

	PaymentReference   string         `gorm:"type:varchar(128);uniqueIndex;not null" json:"payment_reference"`
	PaymentOrderNumber *string        `gorm:"type:varchar(128);index" json:"payment_order_number,omitempty"`
	PaymentStatus      PaymentStatus  `gorm:"type:varchar(32);index;not null;default:'processing'" json:"payment_status"`
	GatewayResponse    datatypes.JSON `json:"gateway_response,omitempty"`

	RelatedSaleID   *uint                     `gorm:"index" json:"related_sale_id,omitempty"`
	RelatedStockIDs datatypes.JSONSlice[uint] `json:"related_stock_ids,omitempty"`
	DeliveryDetails datatypes.JSON            `json:"delivery_details,omitempty"`
	// ActiveSaleID equals RelatedSaleID until the transaction fails or is
	// cancelled; the unique index allows one live payment per sale.
	ActiveSaleID *uint `gorm:"uniqueIndex" json:"-"`

	CompletedAt   *time.Time `json:"payment_completed_at,omitempty"`
	FailedAt      *time.Time `json:"payment_failed_at,omitempty"`
	FailureReason string     `gorm:"type:varchar(500)" json:"failure_reason,omitempty"`

	ReceiptSent   bool       `gorm:"not null;default:false" json:"receipt_sent"`
	ReceiptEmail  string     `gorm:"type:varchar(255)" json:"receipt_email,omitempty"`
	ReceiptSentAt *time.Time `json:"receipt_sent_at,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusChange describes what UpdatePaymentStatus did.
type StatusChange struct {
	From    PaymentStatus
	To      PaymentStatus
	Changed bool
	// EnteredSuccess is true only on the move from a non successful status
	// into completed or approved.
	EnteredSuccess bool
}

// UpdatePaymentStatus applies a status reported by the gateway at time now.
// Re-applying the current terminal status is a no-op so timestamps survive
// repeated verification.
func (p *PaymentTransaction) UpdatePaymentStatus(status PaymentStatus, gatewayResponse datatypes.JSON, now time.Time) StatusChange {
	change := StatusChange{From: p.PaymentStatus, To: status}
	if status == p.PaymentStatus && status.IsTerminal() {
		return change
	}

	change.Changed = status != p.PaymentStatus
	change.EnteredSuccess = status.IsSuccessful() && !p.PaymentStatus.IsSuccessful()

	p.PaymentStatus = status
	if len(gatewayResponse) > 0 {
		p.GatewayResponse = gatewayResponse
	}

	switch {
	case status.IsSuccessful():
		if p.CompletedAt == nil {
			t := now
			p.CompletedAt = &t
		}
		p.FailedAt = nil
		p.FailureReason = ""
	case status.IsFailure():
		t := now
		p.FailedAt = &t
		p.CompletedAt = nil
		if reason := failureReason(gatewayResponse); reason != "" {
			p.FailureReason = reason
		}
	}

	p.syncActiveSale()
	return change
}

func (p *PaymentTransaction) syncActiveSale() {
	if p.RelatedSaleID == nil || p.PaymentStatus.IsFailure() {
		p.ActiveSaleID = nil
		return
	}
	id := *p.RelatedSaleID
	p.ActiveSaleID = &id
}

// IsVisibleTo reports whether userID is the payer or the user payee.
func (p *PaymentTransaction) IsVisibleTo(userID uint) bool {
	if p.PayerID == userID {
		return true
	}
	return p.PayeeKind == PayeeKindUser && p.PayeeID == userID
}

func failureReason(gatewayResponse datatypes.JSON) string {
	if len(gatewayResponse) == 0 {
		return ""
	}
	var body struct {
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(gatewayResponse, &body); err != nil {
		return ""
	}
	return body.ErrorMessage
}

// BeforeCreate keeps ActiveSaleID consistent for new rows.
func (p *PaymentTransaction) BeforeCreate(_ *gorm.DB) error {
	if p.PaymentStatus == "" {
		p.PaymentStatus = PaymentStatusProcessing
	}
	p.syncActiveSale()
	return nil
}
