package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Sale struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	CashierID          uint              `gorm:"index;not null" json:"cashier_id"`
	PharmacyID         uint              `gorm:"index;not null" json:"pharmacy_id"`
	Pharmacy           *Pharmacy         `json:"pharmacy,omitempty"`
	ClientID           *uint             `gorm:"index" json:"client_id,omitempty"`
	TotalAmount        decimal.Decimal   `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	DiscountAmount     decimal.Decimal   `gorm:"type:decimal(14,2);not null;default:0" json:"discount_amount"`
	PaymentMethod      SalePaymentMethod `gorm:"type:varchar(16);not null;default:'cash'" json:"payment_method"`
	PaymentReference   *string           `gorm:"type:varchar(128);index" json:"payment_reference,omitempty"`
	PaymentOrderNumber *string           `gorm:"type:varchar(128)" json:"payment_order_number,omitempty"`
	PaymentStatus      *PaymentStatus    `gorm:"type:varchar(32)" json:"payment_status,omitempty"`
	PaymentCompletedAt *time.Time        `json:"payment_completed_at,omitempty"`
	Items              []SaleItem        `json:"items,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// FinalAmount is what the client pays: total minus discount.
func (s *Sale) FinalAmount() decimal.Decimal {
	return s.TotalAmount.Sub(s.DiscountAmount)
}

type SaleItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	SaleID    uint            `gorm:"index;not null" json:"sale_id"`
	StockID   uint            `gorm:"index;not null" json:"stock_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	CreatedAt time.Time       `json:"created_at"`
}
