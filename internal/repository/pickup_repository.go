package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nurpe/foodshare-pickups/internal/lifecycle"
	"github.com/nurpe/foodshare-pickups/internal/model"
)

// PickupFilter narrows pickup queries. Nil fields are not applied.
type PickupFilter struct {
	BeneficiaryID   *uuid.UUID
	EstablishmentID *uuid.UUID
	Status          *lifecycle.Status
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}

type PickupRepository struct {
	db *gorm.DB
}

func NewPickupRepository(db *gorm.DB) *PickupRepository {
	return &PickupRepository{db: db}
}

func (r *PickupRepository) Create(ctx context.Context, pickup *model.Pickup) error {
	return conn(ctx, r.db).Create(pickup).Error
}

func (r *PickupRepository) Get(ctx context.Context, id uuid.UUID) (*model.Pickup, error) {
	var pickup model.Pickup
	if err := conn(ctx, r.db).Where("id = ?", id).Take(&pickup).Error; err != nil {
		return nil, err
	}
	return &pickup, nil
}

// GetForUpdate reads the pickup with a row lock held until the surrounding transaction ends.
func (r *PickupRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Pickup, error) {
	var pickup model.Pickup
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		Take(&pickup).Error
	if err != nil {
		return nil, err
	}
	return &pickup, nil
}

// Transition persists the status, stamps and notes of pickup only if the stored row is
// still in status from at pickup.Version. A miss returns ErrStaleWrite.
func (r *PickupRepository) Transition(ctx context.Context, pickup *model.Pickup, from lifecycle.Status) error {
	res := conn(ctx, r.db).Exec(`
		UPDATE pickups
		SET
			status = ?,
			delivered_quantity = ?,
			establishment_notes = ?,
			cancellation_reason = ?,
			confirmed_at = ?,
			visit_confirmed_at = ?,
			completed_at = ?,
			cancelled_at = ?,
			updated_at = ?,
			version = version + 1
		WHERE id = ? AND status = ? AND version = ?
	`,
		pickup.Status,
		pickup.DeliveredQuantity,
		pickup.EstablishmentNotes,
		pickup.CancellationReason,
		pickup.ConfirmedAt,
		pickup.VisitConfirmedAt,
		pickup.CompletedAt,
		pickup.CancelledAt,
		pickup.UpdatedAt,
		pickup.ID,
		from,
		pickup.Version,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: pickup %s left %s", ErrStaleWrite, pickup.ID, from)
	}
	pickup.Version++
	return nil
}

// List returns pickups matching filter, newest first.
func (r *PickupRepository) List(ctx context.Context, filter PickupFilter) ([]model.Pickup, error) {
	where, args := filter.where("")
	var pickups []model.Pickup
	if err := conn(ctx, r.db).Where(where, args...).Order("created_at DESC").Find(&pickups).Error; err != nil {
		return nil, err
	}
	return pickups, nil
}

// ListOpenByLot returns the non-terminal pickups of a lot.
func (r *PickupRepository) ListOpenByLot(ctx context.Context, lotID uuid.UUID) ([]model.Pickup, error) {
	var pickups []model.Pickup
	err := conn(ctx, r.db).
		Where("food_lot_id = ? AND status IN ?", lotID, openStatuses()).
		Find(&pickups).Error
	if err != nil {
		return nil, err
	}
	return pickups, nil
}

func (f PickupFilter) where(alias string) (string, []interface{}) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}

	conds := []string{"1 = 1"}
	var args []interface{}
	if f.BeneficiaryID != nil {
		conds = append(conds, col("beneficiary_id")+" = ?")
		args = append(args, *f.BeneficiaryID)
	}
	if f.EstablishmentID != nil {
		conds = append(conds, col("establishment_id")+" = ?")
		args = append(args, *f.EstablishmentID)
	}
	if f.Status != nil {
		conds = append(conds, col("status")+" = ?")
		args = append(args, *f.Status)
	}
	if f.CreatedFrom != nil {
		conds = append(conds, col("created_at")+" >= ?")
		args = append(args, *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		conds = append(conds, col("created_at")+" < ?")
		args = append(args, *f.CreatedTo)
	}
	return strings.Join(conds, " AND "), args
}

func openStatuses() []string {
	var out []string
	for _, s := range lifecycle.AllStatuses {
		if !s.Terminal() {
			out = append(out, string(s))
		}
	}
	return out
}
