package models

import "time"

type Notification struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	UserID     uint             `gorm:"index:idx_notification_user_read;not null" json:"user_id"`
	Title      string           `gorm:"type:varchar(150);not null" json:"title"`
	Message    string           `gorm:"type:text;not null" json:"message"`
	Type       NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	EntityType *string          `gorm:"type:varchar(64)" json:"entity_type,omitempty"`
	EntityID   *uint            `json:"entity_id,omitempty"`
	IsRead     bool             `gorm:"index:idx_notification_user_read;not null;default:false" json:"is_read"`
	CreatedAt  time.Time        `gorm:"not null" json:"created_at"`
}
