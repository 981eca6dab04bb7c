package model

import "github.com/google/uuid"

// Establishment is a read-only copy of the donor profile kept by the profile service.
type Establishment struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Address     string    `gorm:"type:text" json:"address"`
	Phone       string    `gorm:"type:varchar(64)" json:"phone"`
	ContactName string    `gorm:"type:varchar(255)" json:"contact_name"`
}

func (Establishment) TableName() string { return "establishments" }
