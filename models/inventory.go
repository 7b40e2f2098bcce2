package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Medicine struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Barcode     string          `gorm:"type:varchar(64);index" json:"barcode"`
	PriceForOne decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"price_for_one"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Stock is medicine held by a pharmacy.
type Stock struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	PharmacyID     uint       `gorm:"index;not null" json:"pharmacy_id"`
	MedicineID     uint       `gorm:"index;not null" json:"medicine_id"`
	Medicine       *Medicine  `json:"medicine,omitempty"`
	SupplierID     *uint      `json:"supplier_id,omitempty"`
	StockQuantity  int        `gorm:"not null;default:0" json:"stock_quantity"`
	ExpirationDate *time.Time `gorm:"index" json:"expiration_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// WholesalerStock is medicine held by a wholesaler account.
type WholesalerStock struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	WholesalerID   uint            `gorm:"index;not null" json:"wholesaler_id"`
	MedicineID     uint            `gorm:"index;not null" json:"medicine_id"`
	Medicine       *Medicine       `json:"medicine,omitempty"`
	SupplierID     *uint           `json:"supplier_id,omitempty"`
	Quantity       int             `gorm:"not null;default:0" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"unit_price"`
	BatchNumber    string          `gorm:"type:varchar(64)" json:"batch_number"`
	ExpirationDate *time.Time      `gorm:"index" json:"expiration_date,omitempty"`
	IsAvailable    bool            `gorm:"not null;default:true" json:"is_available"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
