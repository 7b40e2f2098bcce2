package models

import "time"

type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Email      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password   string    `gorm:"type:varchar(255);not null" json:"-"`
	Role       Role      `gorm:"type:varchar(32);index;not null" json:"role"`
	PharmacyID *uint     `gorm:"index" json:"pharmacy_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Pharmacy struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Address     string    `gorm:"type:varchar(500)" json:"address"`
	ContactInfo string    `gorm:"type:varchar(255)" json:"contact_info"`
	OwnerID     uint      `gorm:"index;not null" json:"owner_id"`
	Owner       *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type LogisticsCenter struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	ContactInfo string `gorm:"type:varchar(255)" json:"contact_info"`
	// ManagerID is the logistics user who receives transport notifications.
	ManagerID *uint     `gorm:"index" json:"manager_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Supplier struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	ContactInfo string    `gorm:"type:varchar(255)" json:"contact_info"`
	CreatedAt   time.Time `json:"created_at"`
}
