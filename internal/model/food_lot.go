package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FoodLot is a donated batch of one food item. The quantity counters are only
// written by the inventory ledger and always satisfy
// available + reserved + consumed == total.
type FoodLot struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	EstablishmentID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"establishment_id"`
	Name              string          `gorm:"type:varchar(255);not null" json:"name"`
	Unit              string          `gorm:"type:varchar(32);not null" json:"unit"`
	TotalQuantity     decimal.Decimal `gorm:"type:numeric(14,3);not null" json:"total_quantity"`
	AvailableQuantity decimal.Decimal `gorm:"type:numeric(14,3);not null" json:"available_quantity"`
	ReservedQuantity  decimal.Decimal `gorm:"type:numeric(14,3);not null" json:"reserved_quantity"`
	ConsumedQuantity  decimal.Decimal `gorm:"type:numeric(14,3);not null" json:"consumed_quantity"`
	ExpiresAt         time.Time       `gorm:"not null;index" json:"expires_at"`
	CreatedAt         time.Time       `gorm:"not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
	Version           int64           `gorm:"not null;default:1" json:"-"`
}

func (FoodLot) TableName() string { return "food_lots" }

func (l FoodLot) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

func (l FoodLot) Exhausted() bool {
	return !l.AvailableQuantity.IsPositive()
}
