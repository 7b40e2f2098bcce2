package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
	"gorm.io/gorm"
)

// Audit action tags
const (
	AuditPaymentInitiated = "payment_initiated"
	AuditPaymentVerified  = "payment_verified"
	AuditReceiptRequested = "receipt_requested"
	AuditReceiptEmailed   = "receipt_emailed"
	AuditUserRegistered   = "user_registered"
	AuditSaleRecorded     = "sale_recorded"
	AuditExpirationSweep  = "expiration_sweep"
	AuditEntityPayment    = "payment_transaction"
	AuditEntityUser       = "user"
	AuditEntitySale       = "sale"
	AuditEntityStock      = "stock"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uint
	Role models.Role
	// Origin is the caller's network address.
	Origin string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

type AuditEntry struct {
	Actor       Actor
	EntityType  string
	EntityID    string
	Action      string
	Description string
}

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record appends an entry. A failed write is logged, never returned: the
// audit trail must not break the operation it describes.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	row := models.AuditLog{
		ActorID:     entry.Actor.ID,
		ActorRole:   entry.Actor.Role,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		ActionType:  entry.Action,
		Description: entry.Description,
		IPAddress:   entry.Actor.Origin,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"action":    entry.Action,
			"entity":    entry.EntityType,
			"entity_id": entry.EntityID,
		}).Errorf("failed to write audit log: %v", err)
	}
}

func (s *AuditService) ListForEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error) {
	var rows []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}
