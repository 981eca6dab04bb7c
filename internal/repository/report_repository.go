package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/foodshare-pickups/internal/lifecycle"
	"github.com/nurpe/foodshare-pickups/internal/model"
)

// CompletedQuantities is one completed pickup reduced to the numbers statistics need.
type CompletedQuantities struct {
	Requested decimal.Decimal
	Delivered decimal.Decimal
}

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) GetEstablishment(ctx context.Context, id uuid.UUID) (*model.Establishment, error) {
	var est model.Establishment
	if err := conn(ctx, r.db).Raw(`
		SELECT id, name, address, phone, contact_name
		FROM establishments
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&est).Error; err != nil {
		return nil, err
	}
	if est.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &est, nil
}

func (r *ReportRepository) CountsByStatus(ctx context.Context, filter PickupFilter) ([]model.StatusCount, error) {
	where, args := filter.where("p")
	var rows []model.StatusCount
	if err := conn(ctx, r.db).Raw(`
		SELECT p.status AS status, COUNT(*) AS count
		FROM pickups p
		WHERE `+where+`
		GROUP BY p.status
		ORDER BY p.status ASC
	`, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListCompletedQuantities returns requested and delivered quantities of completed pickups.
// Ratios are computed by the caller so integer division in the database never truncates them.
func (r *ReportRepository) ListCompletedQuantities(ctx context.Context, filter PickupFilter) ([]CompletedQuantities, error) {
	completed := lifecycle.StatusCompleted
	filter.Status = &completed
	where, args := filter.where("p")

	var rows []CompletedQuantities
	if err := conn(ctx, r.db).Raw(`
		SELECT
			p.requested_quantity AS requested,
			p.delivered_quantity AS delivered
		FROM pickups p
		WHERE `+where+`
			AND p.delivered_quantity IS NOT NULL
	`, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListRows returns pickups joined with their lot name and unit, oldest first.
func (r *ReportRepository) ListRows(ctx context.Context, filter PickupFilter) ([]model.PickupRow, error) {
	where, args := filter.where("p")

	var pickups []model.Pickup
	if err := conn(ctx, r.db).
		Table("pickups AS p").
		Where(where, args...).
		Order("p.created_at ASC").
		Find(&pickups).Error; err != nil {
		return nil, err
	}
	if len(pickups) == 0 {
		return []model.PickupRow{}, nil
	}

	lotIDs := make([]uuid.UUID, 0, len(pickups))
	seen := make(map[uuid.UUID]struct{}, len(pickups))
	for _, p := range pickups {
		if _, ok := seen[p.FoodLotID]; ok {
			continue
		}
		seen[p.FoodLotID] = struct{}{}
		lotIDs = append(lotIDs, p.FoodLotID)
	}

	var lots []model.FoodLot
	if err := conn(ctx, r.db).Where("id IN ?", lotIDs).Find(&lots).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]model.FoodLot, len(lots))
	for _, lot := range lots {
		byID[lot.ID] = lot
	}

	rows := make([]model.PickupRow, 0, len(pickups))
	for _, p := range pickups {
		lot := byID[p.FoodLotID]
		rows = append(rows, model.PickupRow{Pickup: p, LotName: lot.Name, Unit: lot.Unit})
	}
	return rows, nil
}
