package models

import "time"

// ExpirationAlert is written once per (stock kind, stock id, severity).
type ExpirationAlert struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	StockKind StockKind     `gorm:"type:varchar(16);not null;uniqueIndex:idx_alert_stock_severity" json:"stock_kind"`
	StockID   uint          `gorm:"not null;uniqueIndex:idx_alert_stock_severity" json:"stock_id"`
	Severity  AlertSeverity `gorm:"type:varchar(16);not null;uniqueIndex:idx_alert_stock_severity" json:"severity_level"`
	DaysLeft  int           `json:"days_left"`
	AlertDate time.Time     `gorm:"not null" json:"alert_date"`
	Notified  bool          `gorm:"not null;default:false" json:"notified"`
	UserID    *uint         `gorm:"index" json:"user_id,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
