package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PurchaseOrderItem struct {
	MedicineID uint            `json:"medicine_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type PurchaseOrder struct {
	ID                 uint                                   `gorm:"primaryKey" json:"id"`
	PharmacyID         uint                                   `gorm:"index;not null" json:"pharmacy_id"`
	Pharmacy           *Pharmacy                              `json:"pharmacy,omitempty"`
	WholesalerID       uint                                   `gorm:"index;not null" json:"wholesaler_id"`
	Items              datatypes.JSONSlice[PurchaseOrderItem] `json:"items"`
	TotalAmount        decimal.Decimal                        `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	Status             PurchaseOrderStatus                    `gorm:"type:varchar(32);not null;default:'pending'" json:"status"`
	Notes              string                                 `gorm:"type:text" json:"notes"`
	TransportRequestID *uint                                  `json:"transport_request_id,omitempty"`
	CreatedAt          time.Time                              `json:"created_at"`
	UpdatedAt          time.Time                              `json:"updated_at"`
}

type TransportRequest struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	WholesalerID          uint            `gorm:"index;not null" json:"wholesaler_id"`
	LogisticsCenterID     uint            `gorm:"index;not null" json:"logistics_center_id"`
	DestinationPharmacyID uint            `gorm:"index;not null" json:"destination_pharmacy_id"`
	PurchaseOrderID       uint            `gorm:"index;not null" json:"purchase_order_id"`
	TotalAmount           decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	TransportFee          decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"transport_fee"`
	Status                TransportStatus `gorm:"type:varchar(32);not null;default:'pending'" json:"status"`
	EstimatedDeliveryDate *time.Time      `json:"estimated_delivery_date,omitempty"`
	ActualDeliveryDate    *time.Time      `json:"actual_delivery_date,omitempty"`
	Notes                 string          `gorm:"type:text" json:"notes"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}
