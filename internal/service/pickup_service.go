package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/foodshare-pickups/internal/clock"
	"github.com/nurpe/foodshare-pickups/internal/config"
	"github.com/nurpe/foodshare-pickups/internal/ledger"
	"github.com/nurpe/foodshare-pickups/internal/lifecycle"
	"github.com/nurpe/foodshare-pickups/internal/model"
	"github.com/nurpe/foodshare-pickups/internal/notify"
	"github.com/nurpe/foodshare-pickups/internal/repository"
)

// EventEmitter hands events to the notification dispatcher without blocking.
type EventEmitter interface {
	Emit(event notify.Event)
}

type PickupService struct {
	tx          Transactor
	pickups     *repository.PickupRepository
	lots        *repository.LotRepository
	ledger      *ledger.Ledger
	events      EventEmitter
	clock       clock.Clock
	minLeadTime time.Duration
	log         zerolog.Logger
}

type CreatePickupInput struct {
	FoodLotID         uuid.UUID
	RequestedQuantity decimal.Decimal
	ScheduledDate     time.Time
	Notes             string
}

type ListPickupsFilter struct {
	Status *lifecycle.Status
}

func NewPickupService(
	tx Transactor,
	pickups *repository.PickupRepository,
	lots *repository.LotRepository,
	inventory *ledger.Ledger,
	events EventEmitter,
	clk clock.Clock,
	cfg *config.Config,
	log zerolog.Logger,
) *PickupService {
	return &PickupService{
		tx:          tx,
		pickups:     pickups,
		lots:        lots,
		ledger:      inventory,
		events:      events,
		clock:       clk,
		minLeadTime: cfg.Pickups.MinLeadTime,
		log:         log.With().Str("component", "pickups").Logger(),
	}
}

// Create reserves the requested quantity and stores a PENDING pickup in one transaction.
func (s *PickupService) Create(ctx context.Context, principal model.Principal, input CreatePickupInput) (*model.Pickup, error) {
	if !principal.IsBeneficiary() {
		return nil, fmt.Errorf("%w: only beneficiaries may request pickups", ErrForbidden)
	}
	if input.FoodLotID == uuid.Nil {
		return nil, fmt.Errorf("%w: food_lot_id is required", ErrInvalidInput)
	}
	if err := ledger.ValidateAmount(input.RequestedQuantity); err != nil {
		return nil, fmt.Errorf("%w: requested_quantity: %w", ErrInvalidInput, err)
	}
	now := s.clock.Now()
	if !input.ScheduledDate.After(now.Add(s.minLeadTime)) {
		return nil, fmt.Errorf("%w: scheduled_date must be in the future", ErrInvalidInput)
	}

	var pickup *model.Pickup
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		lot, err := s.lots.Get(ctx, input.FoodLotID)
		if err != nil {
			return notFound(err, "food lot")
		}
		if lot.Expired(now) {
			return fmt.Errorf("%w: food lot expired at %s", ErrInvalidInput, lot.ExpiresAt.Format(time.RFC3339))
		}
		if lot.Exhausted() {
			return fmt.Errorf("%w: %w: food lot has no stock left", ErrQuantityExceedsAvailability, ledger.ErrInsufficientStock)
		}

		reservation, err := s.ledger.Reserve(ctx, lot.ID, input.RequestedQuantity)
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientStock) {
				return fmt.Errorf("%w: %w", ErrQuantityExceedsAvailability, err)
			}
			return err
		}

		p := &model.Pickup{
			ID:                uuid.New(),
			BeneficiaryID:     principal.UserID,
			EstablishmentID:   lot.EstablishmentID,
			FoodLotID:         reservation.LotID,
			RequestedQuantity: reservation.Amount,
			ScheduledDate:     input.ScheduledDate.UTC(),
			BeneficiaryNotes:  strings.TrimSpace(input.Notes),
			Version:           1,
		}
		p.Apply(lifecycle.NewPending(now), now)
		if err := s.pickups.Create(ctx, p); err != nil {
			return err
		}
		pickup = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(notify.EventPickupCreated, pickup)
	return pickup, nil
}

// Confirm accepts or rejects a PENDING pickup. A rejection returns the reservation to the lot.
func (s *PickupService) Confirm(ctx context.Context, principal model.Principal, pickupID uuid.UUID, confirmed bool, notes string) (*model.Pickup, error) {
	action := lifecycle.ActionConfirm
	event := notify.EventPickupConfirmed
	if !confirmed {
		action = lifecycle.ActionReject
		event = notify.EventPickupRejected
	}

	pickup, err := s.transition(ctx, principal, pickupID, action, func(ctx context.Context, p *model.Pickup, st lifecycle.State, now time.Time) (lifecycle.State, error) {
		pending, ok := st.(lifecycle.Pending)
		if !ok {
			return nil, unexpectedState(st, action)
		}
		if notes = strings.TrimSpace(notes); notes != "" {
			p.EstablishmentNotes = notes
		}
		if confirmed {
			return pending.Confirm(now), nil
		}
		if err := s.ledger.Release(ctx, p.FoodLotID, p.RequestedQuantity); err != nil {
			return nil, err
		}
		return pending.Reject(now), nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(event, pickup)
	return pickup, nil
}

func (s *PickupService) ConfirmVisit(ctx context.Context, principal model.Principal, pickupID uuid.UUID) (*model.Pickup, error) {
	pickup, err := s.transition(ctx, principal, pickupID, lifecycle.ActionConfirmVisit, func(_ context.Context, _ *model.Pickup, st lifecycle.State, now time.Time) (lifecycle.State, error) {
		confirmed, ok := st.(lifecycle.Confirmed)
		if !ok {
			return nil, unexpectedState(st, lifecycle.ActionConfirmVisit)
		}
		return confirmed.ConfirmVisit(now), nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(notify.EventPickupVisitConfirmed, pickup)
	return pickup, nil
}

// Complete records the delivered quantity and settles the reservation. Delivering less
// than requested is allowed; the remainder goes back to the lot.
func (s *PickupService) Complete(ctx context.Context, principal model.Principal, pickupID uuid.UUID, delivered decimal.Decimal, notes string) (*model.Pickup, error) {
	if err := ledger.ValidateAmount(delivered); err != nil {
		return nil, fmt.Errorf("%w: delivered_quantity: %w", ErrInvalidInput, err)
	}

	pickup, err := s.transition(ctx, principal, pickupID, lifecycle.ActionComplete, func(ctx context.Context, p *model.Pickup, st lifecycle.State, now time.Time) (lifecycle.State, error) {
		inProgress, ok := st.(lifecycle.InProgress)
		if !ok {
			return nil, unexpectedState(st, lifecycle.ActionComplete)
		}
		if delivered.GreaterThan(p.RequestedQuantity) {
			return nil, fmt.Errorf("%w: delivered_quantity %s exceeds requested %s", ErrInvalidInput, delivered, p.RequestedQuantity)
		}
		if err := s.ledger.Commit(ctx, p.FoodLotID, p.RequestedQuantity, delivered); err != nil {
			return nil, err
		}
		if notes = strings.TrimSpace(notes); notes != "" {
			p.EstablishmentNotes = notes
		}
		return inProgress.Complete(now, delivered), nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(notify.EventPickupCompleted, pickup)
	return pickup, nil
}

// Cancel withdraws a PENDING or CONFIRMED pickup on behalf of its beneficiary.
func (s *PickupService) Cancel(ctx context.Context, principal model.Principal, pickupID uuid.UUID, reason string) (*model.Pickup, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: cancellation reason is required", ErrInvalidInput)
	}

	pickup, err := s.transition(ctx, principal, pickupID, lifecycle.ActionCancel, func(ctx context.Context, p *model.Pickup, st lifecycle.State, now time.Time) (lifecycle.State, error) {
		var next lifecycle.State
		switch cur := st.(type) {
		case lifecycle.Pending:
			next = cur.Cancel(now, reason)
		case lifecycle.Confirmed:
			next = cur.Cancel(now, reason)
		default:
			return nil, unexpectedState(st, lifecycle.ActionCancel)
		}
		if err := s.ledger.Release(ctx, p.FoodLotID, p.RequestedQuantity); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(notify.EventPickupCancelled, pickup)
	return pickup, nil
}

func (s *PickupService) Get(ctx context.Context, principal model.Principal, pickupID uuid.UUID) (*model.Pickup, error) {
	pickup, err := s.pickups.Get(ctx, pickupID)
	if err != nil {
		return nil, notFound(err, "pickup")
	}
	if !canView(principal, pickup) {
		return nil, ErrForbidden
	}
	return pickup, nil
}

func (s *PickupService) List(ctx context.Context, principal model.Principal, filter ListPickupsFilter) ([]model.Pickup, error) {
	query, err := principalFilter(principal)
	if err != nil {
		return nil, err
	}
	query.Status = filter.Status
	return s.pickups.List(ctx, query)
}

type stepFunc func(ctx context.Context, p *model.Pickup, st lifecycle.State, now time.Time) (lifecycle.State, error)

// transition locks the pickup, checks the actor and the current status, runs step and
// persists the resulting state. Everything happens in one transaction.
func (s *PickupService) transition(ctx context.Context, principal model.Principal, pickupID uuid.UUID, action lifecycle.Action, step stepFunc) (*model.Pickup, error) {
	var pickup *model.Pickup
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.pickups.GetForUpdate(ctx, pickupID)
		if err != nil {
			return notFound(err, "pickup")
		}
		if err := authorize(ctx, s.lots, principal, p, action); err != nil {
			return err
		}
		from := p.Status
		if _, err := lifecycle.Next(from, action); err != nil {
			return err
		}

		current, err := p.State()
		if err != nil {
			return err
		}
		now := s.clock.Now()
		next, err := step(ctx, p, current, now)
		if err != nil {
			return err
		}

		p.Apply(next, now)
		if err := s.pickups.Transition(ctx, p, from); err != nil {
			if errors.Is(err, repository.ErrStaleWrite) {
				return fmt.Errorf("%w: %w", ErrInvalidStateTransition, err)
			}
			return err
		}
		pickup = p
		return nil
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInvariantViolation) {
			s.log.Error().Err(err).
				Str("pickup_id", pickupID.String()).
				Str("action", string(action)).
				Msg("transition aborted by ledger invariant violation")
		}
		return nil, err
	}
	return pickup, nil
}

func (s *PickupService) emit(kind notify.EventType, p *model.Pickup) {
	if s.events == nil {
		return
	}
	event := notify.Event{
		Type:              kind,
		PickupID:          p.ID,
		BeneficiaryID:     p.BeneficiaryID,
		EstablishmentID:   p.EstablishmentID,
		FoodLotID:         p.FoodLotID,
		RequestedQuantity: p.RequestedQuantity,
		OccurredAt:        p.UpdatedAt,
	}
	if p.DeliveredQuantity.Valid {
		delivered := p.DeliveredQuantity.Decimal
		event.DeliveredQuantity = &delivered
	}
	if p.CancellationReason != nil {
		event.Reason = *p.CancellationReason
	}
	s.events.Emit(event)
}

func unexpectedState(st lifecycle.State, action lifecycle.Action) error {
	return fmt.Errorf("%w: cannot %s a %s pickup", ErrInvalidStateTransition, action, st.Status())
}
