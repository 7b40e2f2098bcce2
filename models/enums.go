package models

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleAdmin         Role = "admin"
	RoleCashier       Role = "cashier"
	RoleClient        Role = "client"
	RolePharmacyOwner Role = "pharmacy_owner"
	RoleWholesaler    Role = "wholesaler"
	RoleLogistics     Role = "logistics"
)

var allRoles = []Role{RoleAdmin, RoleCashier, RoleClient, RolePharmacyOwner, RoleWholesaler, RoleLogistics}

func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

type PaymentType string

const (
	PaymentTypeClientPurchase        PaymentType = "client_purchase"
	PaymentTypePharmacyToWholesaler  PaymentType = "pharmacy_to_wholesaler"
	PaymentTypeWholesalerToLogistics PaymentType = "wholesaler_to_logistics"
	PaymentTypeOther                 PaymentType = "other"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeClientPurchase, PaymentTypePharmacyToWholesaler, PaymentTypeWholesalerToLogistics, PaymentTypeOther:
		return true
	}
	return false
}

func ParsePaymentType(s string) (PaymentType, error) {
	t := PaymentType(strings.TrimSpace(s))
	if !t.Valid() {
		return "", fmt.Errorf("unknown payment type %q", s)
	}
	return t, nil
}

type PaymentStatus string

const (
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusApproved   PaymentStatus = "approved"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusApproved,
		PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// IsSuccessful reports completed or approved.
func (s PaymentStatus) IsSuccessful() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusApproved
}

// IsFailure reports failed or cancelled.
func (s PaymentStatus) IsFailure() bool {
	return s == PaymentStatusFailed || s == PaymentStatusCancelled
}

func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusProcessing
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown payment status %q", s)
	}
	return st, nil
}

type PayeeKind string

const (
	PayeeKindUser            PayeeKind = "user"
	PayeeKindLogisticsCenter PayeeKind = "logistics_center"
	PayeeKindSupplier        PayeeKind = "supplier"
)

func (k PayeeKind) Valid() bool {
	return k == PayeeKindUser || k == PayeeKindLogisticsCenter || k == PayeeKindSupplier
}

type NotificationType string

const (
	NotificationNewOrder       NotificationType = "new_order"
	NotificationLowStock       NotificationType = "low_stock"
	NotificationExpiringStock  NotificationType = "expiring_stock"
	NotificationDeliveryUpdate NotificationType = "delivery_update"
	NotificationSystem         NotificationType = "system"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationNewOrder, NotificationLowStock, NotificationExpiringStock, NotificationDeliveryUpdate, NotificationSystem:
		return true
	}
	return false
}

type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityWarning  AlertSeverity = "warning"
	SeverityInfo     AlertSeverity = "info"
)

// SeverityForDaysLeft: critical under a week, warning under thirty days.
func SeverityForDaysLeft(daysLeft int) AlertSeverity {
	switch {
	case daysLeft < 7:
		return SeverityCritical
	case daysLeft < 30:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

type StockKind string

const (
	StockKindPharmacy   StockKind = "pharmacy"
	StockKindWholesaler StockKind = "wholesaler"
)

type SalePaymentMethod string

const (
	SalePaymentCash   SalePaymentMethod = "cash"
	SalePaymentOnline SalePaymentMethod = "online"
)

func (m SalePaymentMethod) Valid() bool {
	return m == SalePaymentCash || m == SalePaymentOnline
}

type PurchaseOrderStatus string

const (
	PurchaseOrderPending    PurchaseOrderStatus = "pending"
	PurchaseOrderConfirmed  PurchaseOrderStatus = "confirmed"
	PurchaseOrderProcessing PurchaseOrderStatus = "processing"
	PurchaseOrderShipped    PurchaseOrderStatus = "shipped"
	PurchaseOrderDelivered  PurchaseOrderStatus = "delivered"
	PurchaseOrderCancelled  PurchaseOrderStatus = "cancelled"
)

func (s PurchaseOrderStatus) Valid() bool {
	switch s {
	case PurchaseOrderPending, PurchaseOrderConfirmed, PurchaseOrderProcessing,
		PurchaseOrderShipped, PurchaseOrderDelivered, PurchaseOrderCancelled:
		return true
	}
	return false
}

type TransportStatus string

const (
	TransportPending   TransportStatus = "pending"
	TransportAccepted  TransportStatus = "accepted"
	TransportInTransit TransportStatus = "in_transit"
	TransportDelivered TransportStatus = "delivered"
	TransportCancelled TransportStatus = "cancelled"
)
