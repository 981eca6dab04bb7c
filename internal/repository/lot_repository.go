package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nurpe/foodshare-pickups/internal/model"
)

// ErrStaleWrite means a guarded update matched no row because another writer got there first.
var ErrStaleWrite = errors.New("stale write")

type LotRepository struct {
	db *gorm.DB
}

func NewLotRepository(db *gorm.DB) *LotRepository {
	return &LotRepository{db: db}
}

func (r *LotRepository) Create(ctx context.Context, lot *model.FoodLot) error {
	return conn(ctx, r.db).Create(lot).Error
}

func (r *LotRepository) Get(ctx context.Context, id uuid.UUID) (*model.FoodLot, error) {
	var lot model.FoodLot
	if err := conn(ctx, r.db).Where("id = ?", id).Take(&lot).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}

// LockLot reads the lot with SELECT ... FOR UPDATE. It must run inside a transaction.
func (r *LotRepository) LockLot(ctx context.Context, id uuid.UUID) (*model.FoodLot, error) {
	var lot model.FoodLot
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		Take(&lot).Error
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

// SaveLotQuantities writes the counters of a lot previously read at lot.Version and
// bumps the version.
func (r *LotRepository) SaveLotQuantities(ctx context.Context, lot *model.FoodLot) error {
	res := conn(ctx, r.db).Exec(`
		UPDATE food_lots
		SET
			available_quantity = ?,
			reserved_quantity = ?,
			consumed_quantity = ?,
			updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`,
		lot.AvailableQuantity,
		lot.ReservedQuantity,
		lot.ConsumedQuantity,
		lot.UpdatedAt,
		lot.ID,
		lot.Version,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: food lot %s at version %d", ErrStaleWrite, lot.ID, lot.Version)
	}
	lot.Version++
	return nil
}

// ListAvailable returns lots with stock left that have not expired, soonest expiry first.
func (r *LotRepository) ListAvailable(ctx context.Context, now time.Time) ([]model.FoodLot, error) {
	var lots []model.FoodLot
	err := conn(ctx, r.db).
		Where("available_quantity > 0 AND expires_at > ?", now).
		Order("expires_at ASC").
		Find(&lots).Error
	if err != nil {
		return nil, err
	}
	return lots, nil
}

func (r *LotRepository) ListByEstablishment(ctx context.Context, establishmentID uuid.UUID) ([]model.FoodLot, error) {
	var lots []model.FoodLot
	err := conn(ctx, r.db).
		Where("establishment_id = ?", establishmentID).
		Order("created_at DESC").
		Find(&lots).Error
	if err != nil {
		return nil, err
	}
	return lots, nil
}

func (r *LotRepository) ResolveEstablishmentOwner(ctx context.Context, foodID uuid.UUID) (uuid.UUID, error) {
	var owner struct {
		EstablishmentID uuid.UUID
	}
	err := conn(ctx, r.db).Raw(`
		SELECT establishment_id
		FROM food_lots
		WHERE id = ?
		LIMIT 1
	`, foodID).Scan(&owner).Error
	if err != nil {
		return uuid.Nil, err
	}
	if owner.EstablishmentID == uuid.Nil {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	return owner.EstablishmentID, nil
}
