package models

import "gorm.io/gorm"

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Pharmacy{},
		&LogisticsCenter{},
		&Supplier{},
		&Medicine{},
		&Stock{},
		&WholesalerStock{},
		&Sale{},
		&SaleItem{},
		&PurchaseOrder{},
		&TransportRequest{},
		&PaymentTransaction{},
		&Notification{},
		&ExpirationAlert{},
		&AuditLog{},
		&DBChange{},
	)
}
