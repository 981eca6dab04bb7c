package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/foodshare-pickups/internal/lifecycle"
)

type Pickup struct {
	ID                 uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	BeneficiaryID      uuid.UUID           `gorm:"type:uuid;not null;index" json:"beneficiary_id"`
	EstablishmentID    uuid.UUID           `gorm:"type:uuid;not null;index" json:"establishment_id"`
	FoodLotID          uuid.UUID           `gorm:"type:uuid;not null;index" json:"food_lot_id"`
	Status             lifecycle.Status    `gorm:"type:varchar(16);not null;index" json:"status"`
	RequestedQuantity  decimal.Decimal     `gorm:"type:numeric(14,3);not null" json:"requested_quantity"`
	DeliveredQuantity  decimal.NullDecimal `gorm:"type:numeric(14,3)" json:"delivered_quantity"`
	ScheduledDate      time.Time           `gorm:"not null" json:"scheduled_date"`
	BeneficiaryNotes   string              `gorm:"type:text" json:"beneficiary_notes"`
	EstablishmentNotes string              `gorm:"type:text" json:"establishment_notes"`
	CancellationReason *string             `gorm:"type:text" json:"cancellation_reason"`
	CreatedAt          time.Time           `gorm:"not null;index;autoCreateTime:false" json:"created_at"`
	ConfirmedAt        *time.Time          `json:"confirmed_at"`
	VisitConfirmedAt   *time.Time          `json:"visit_confirmed_at"`
	CompletedAt        *time.Time          `json:"completed_at"`
	CancelledAt        *time.Time          `json:"cancelled_at"`
	UpdatedAt          time.Time           `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
	Version            int64               `gorm:"not null;default:1" json:"-"`
}

func (Pickup) TableName() string { return "pickups" }

// State decodes the persisted columns into the lifecycle variant for the current status.
func (p *Pickup) State() (lifecycle.State, error) {
	return lifecycle.Decode(p.Status, lifecycle.Stamps{
		CreatedAt:        p.CreatedAt,
		ConfirmedAt:      p.ConfirmedAt,
		VisitConfirmedAt: p.VisitConfirmedAt,
		CompletedAt:      p.CompletedAt,
		CancelledAt:      p.CancelledAt,
		Delivered:        p.DeliveredQuantity,
		Reason:           p.CancellationReason,
	})
}

// Apply writes the status and stamps of s onto the record.
func (p *Pickup) Apply(s lifecycle.State, at time.Time) {
	stamps := s.Stamps()
	p.Status = s.Status()
	p.CreatedAt = stamps.CreatedAt
	p.ConfirmedAt = stamps.ConfirmedAt
	p.VisitConfirmedAt = stamps.VisitConfirmedAt
	p.CompletedAt = stamps.CompletedAt
	p.CancelledAt = stamps.CancelledAt
	p.DeliveredQuantity = stamps.Delivered
	p.CancellationReason = stamps.Reason
	p.UpdatedAt = at
}

// Open reports whether the pickup still holds a reservation against its lot.
func (p *Pickup) Open() bool {
	return !p.Status.Terminal()
}
