// Package ledger keeps the quantity counters of food lots. Every operation runs inside
// the caller's transaction and serializes on the lot row.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/foodshare-pickups/internal/clock"
	"github.com/nurpe/foodshare-pickups/internal/model"
)

var (
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvariantViolation = errors.New("ledger invariant violation")
)

// QuantityScale is the number of fractional digits a stored quantity keeps.
const QuantityScale = 3

// maxQuantity is the first value that no longer fits numeric(14,3).
var maxQuantity = decimal.New(1, 14-QuantityScale)

// ValidateAmount accepts positive amounts that numeric(14,3) stores without rounding.
func ValidateAmount(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return fmt.Errorf("%w: %s is not positive", ErrInvalidAmount, amount)
	case !amount.Equal(amount.Truncate(QuantityScale)):
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount, QuantityScale)
	case amount.GreaterThanOrEqual(maxQuantity):
		return fmt.Errorf("%w: %s is too large", ErrInvalidAmount, amount)
	}
	return nil
}

// Store loads a lot under an exclusive lock and writes its counters back.
type Store interface {
	LockLot(ctx context.Context, id uuid.UUID) (*model.FoodLot, error)
	SaveLotQuantities(ctx context.Context, lot *model.FoodLot) error
}

// Reservation is the quantity held on a lot for one pickup.
type Reservation struct {
	LotID  uuid.UUID
	Amount decimal.Decimal
}

type Ledger struct {
	store Store
	clock clock.Clock
	log   zerolog.Logger
}

func New(store Store, clk clock.Clock, log zerolog.Logger) *Ledger {
	return &Ledger{
		store: store,
		clock: clk,
		log:   log.With().Str("component", "ledger").Logger(),
	}
}

// Reserve moves amount from available to reserved. It fails with ErrInsufficientStock
// and leaves the lot untouched when less than amount is available.
func (l *Ledger) Reserve(ctx context.Context, lotID uuid.UUID, amount decimal.Decimal) (Reservation, error) {
	if err := ValidateAmount(amount); err != nil {
		return Reservation{}, fmt.Errorf("reserve: %w", err)
	}

	lot, err := l.lock(ctx, lotID)
	if err != nil {
		return Reservation{}, err
	}
	if lot.AvailableQuantity.LessThan(amount) {
		return Reservation{}, fmt.Errorf("%w: requested %s %s, available %s",
			ErrInsufficientStock, amount, lot.Unit, lot.AvailableQuantity)
	}

	lot.AvailableQuantity = lot.AvailableQuantity.Sub(amount)
	lot.ReservedQuantity = lot.ReservedQuantity.Add(amount)
	if err := l.save(ctx, lot, "reserve", amount, decimal.Zero); err != nil {
		return Reservation{}, err
	}
	return Reservation{LotID: lot.ID, Amount: amount}, nil
}

// Release returns a reservation of amount to available stock.
func (l *Ledger) Release(ctx context.Context, lotID uuid.UUID, amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return fmt.Errorf("release: %w", err)
	}

	lot, err := l.lock(ctx, lotID)
	if err != nil {
		return err
	}
	if amount.GreaterThan(lot.ReservedQuantity) {
		return l.violation(lot, "release", amount, decimal.Zero, "release exceeds reserved quantity")
	}

	lot.ReservedQuantity = lot.ReservedQuantity.Sub(amount)
	lot.AvailableQuantity = lot.AvailableQuantity.Add(amount)
	return l.save(ctx, lot, "release", amount, decimal.Zero)
}

// Commit settles a reservation of reserved: consumed leaves circulation for good and the
// remainder goes back to available stock.
func (l *Ledger) Commit(ctx context.Context, lotID uuid.UUID, reserved, consumed decimal.Decimal) error {
	if err := ValidateAmount(reserved); err != nil {
		return fmt.Errorf("commit reserved: %w", err)
	}
	if err := ValidateAmount(consumed); err != nil {
		return fmt.Errorf("commit consumed: %w", err)
	}

	lot, err := l.lock(ctx, lotID)
	if err != nil {
		return err
	}
	if consumed.GreaterThan(reserved) {
		return l.violation(lot, "commit", reserved, consumed, "consumed exceeds reserved amount")
	}
	if reserved.GreaterThan(lot.ReservedQuantity) {
		return l.violation(lot, "commit", reserved, consumed, "commit exceeds reserved quantity")
	}

	lot.ReservedQuantity = lot.ReservedQuantity.Sub(reserved)
	lot.ConsumedQuantity = lot.ConsumedQuantity.Add(consumed)
	lot.AvailableQuantity = lot.AvailableQuantity.Add(reserved.Sub(consumed))
	return l.save(ctx, lot, "commit", reserved, consumed)
}

// CheckBalance verifies that the counters of lot are non-negative, bounded by the total
// and add up to it.
func CheckBalance(lot *model.FoodLot) error {
	switch {
	case lot.AvailableQuantity.IsNegative(), lot.ReservedQuantity.IsNegative(), lot.ConsumedQuantity.IsNegative():
		return errors.New("negative counter")
	case lot.AvailableQuantity.GreaterThan(lot.TotalQuantity):
		return errors.New("available exceeds total")
	}
	sum := lot.AvailableQuantity.Add(lot.ReservedQuantity).Add(lot.ConsumedQuantity)
	if !sum.Equal(lot.TotalQuantity) {
		return fmt.Errorf("counters add up to %s, total is %s", sum, lot.TotalQuantity)
	}
	return nil
}

func (l *Ledger) lock(ctx context.Context, lotID uuid.UUID) (*model.FoodLot, error) {
	lot, err := l.store.LockLot(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("lock food lot %s: %w", lotID, err)
	}
	if err := CheckBalance(lot); err != nil {
		return nil, l.violation(lot, "lock", decimal.Zero, decimal.Zero, err.Error())
	}
	return lot, nil
}

func (l *Ledger) save(ctx context.Context, lot *model.FoodLot, op string, amount, consumed decimal.Decimal) error {
	if err := CheckBalance(lot); err != nil {
		return l.violation(lot, op, amount, consumed, err.Error())
	}
	lot.UpdatedAt = l.clock.Now()
	if err := l.store.SaveLotQuantities(ctx, lot); err != nil {
		return fmt.Errorf("save food lot %s: %w", lot.ID, err)
	}
	l.log.Debug().
		Str("op", op).
		Str("lot_id", lot.ID.String()).
		Str("amount", amount.String()).
		Str("available", lot.AvailableQuantity.String()).
		Str("reserved", lot.ReservedQuantity.String()).
		Msg("ledger updated")
	return nil
}

func (l *Ledger) violation(lot *model.FoodLot, op string, amount, consumed decimal.Decimal, reason string) error {
	l.log.Error().
		Str("op", op).
		Str("lot_id", lot.ID.String()).
		Str("total", lot.TotalQuantity.String()).
		Str("available", lot.AvailableQuantity.String()).
		Str("reserved", lot.ReservedQuantity.String()).
		Str("consumed", lot.ConsumedQuantity.String()).
		Str("amount", amount.String()).
		Str("consumed_amount", consumed.String()).
		Int64("version", lot.Version).
		Msg(reason)
	return fmt.Errorf("%w: %s on lot %s: %s", ErrInvariantViolation, op, lot.ID, reason)
}
