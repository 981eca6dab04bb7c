package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/foodshare-pickups/internal/clock"
	"github.com/nurpe/foodshare-pickups/internal/ledger"
	"github.com/nurpe/foodshare-pickups/internal/model"
	"github.com/nurpe/foodshare-pickups/internal/repository"
)

type LotService struct {
	lots  *repository.LotRepository
	clock clock.Clock
}

type PublishLotInput struct {
	Name      string
	Unit      string
	Quantity  decimal.Decimal
	ExpiresAt time.Time
}

func NewLotService(lots *repository.LotRepository, clk clock.Clock) *LotService {
	return &LotService{lots: lots, clock: clk}
}

// Publish creates a lot with its whole quantity available.
func (s *LotService) Publish(ctx context.Context, principal model.Principal, input PublishLotInput) (*model.FoodLot, error) {
	if !principal.IsEstablishment() {
		return nil, fmt.Errorf("%w: only establishments may publish food lots", ErrForbidden)
	}
	name := strings.TrimSpace(input.Name)
	unit := strings.TrimSpace(input.Unit)
	if name == "" || unit == "" {
		return nil, fmt.Errorf("%w: name and unit are required", ErrInvalidInput)
	}
	if err := ledger.ValidateAmount(input.Quantity); err != nil {
		return nil, fmt.Errorf("%w: quantity: %w", ErrInvalidInput, err)
	}
	now := s.clock.Now()
	if !input.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", ErrInvalidInput)
	}

	lot := &model.FoodLot{
		ID:                uuid.New(),
		EstablishmentID:   principal.OrgID,
		Name:              name,
		Unit:              unit,
		TotalQuantity:     input.Quantity,
		AvailableQuantity: input.Quantity,
		ReservedQuantity:  decimal.Zero,
		ConsumedQuantity:  decimal.Zero,
		ExpiresAt:         input.ExpiresAt.UTC(),
		CreatedAt:         now,
		UpdatedAt:         now,
		Version:           1,
	}
	if err := s.lots.Create(ctx, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

func (s *LotService) Get(ctx context.Context, lotID uuid.UUID) (*model.FoodLot, error) {
	lot, err := s.lots.Get(ctx, lotID)
	if err != nil {
		return nil, notFound(err, "food lot")
	}
	return lot, nil
}

func (s *LotService) ListAvailable(ctx context.Context) ([]model.FoodLot, error) {
	return s.lots.ListAvailable(ctx, s.clock.Now())
}

func (s *LotService) ListMine(ctx context.Context, principal model.Principal) ([]model.FoodLot, error) {
	if !principal.IsEstablishment() {
		return nil, ErrForbidden
	}
	return s.lots.ListByEstablishment(ctx, principal.OrgID)
}
