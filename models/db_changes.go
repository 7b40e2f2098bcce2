package models

import "time"

// Change actions recorded by the database triggers.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
)

// DBChange is written by database triggers when a watched table changes and
// consumed by the change monitor.
type DBChange struct {
	ID         uint      `gorm:"primaryKey"`
	Table      string    `gorm:"column:table_name;type:varchar(50);not null;index:idx_table_action"`
	RecordID   uint      `gorm:"not null"`
	ActionType string    `gorm:"type:varchar(10);not null;index:idx_table_action"`
	ChangedAt  time.Time `gorm:"not null"`
	Processed  bool      `gorm:"not null;default:false;index:idx_processed"`
}

func (DBChange) TableName() string {
	return "db_changes"
}
