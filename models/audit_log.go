package models

import "time"

// AuditLog is append only.
type AuditLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ActorID     uint      `gorm:"index;not null" json:"actor_id"`
	ActorRole   Role      `gorm:"type:varchar(32);not null" json:"actor_role"`
	EntityType  string    `gorm:"type:varchar(64);index:idx_audit_entity;not null" json:"entity_type"`
	EntityID    string    `gorm:"type:varchar(128);index:idx_audit_entity" json:"entity_id"`
	ActionType  string    `gorm:"type:varchar(64);index;not null" json:"action_type"`
	Description string    `gorm:"type:text" json:"description"`
	IPAddress   string    `gorm:"type:varchar(64)" json:"ip_address"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
