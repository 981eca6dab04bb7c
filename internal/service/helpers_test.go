package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/foodshare-pickups/internal/clock"
	"github.com/nurpe/foodshare-pickups/internal/config"
	"github.com/nurpe/foodshare-pickups/internal/ledger"
	"github.com/nurpe/foodshare-pickups/internal/lifecycle"
	"github.com/nurpe/foodshare-pickups/internal/model"
	"github.com/nurpe/foodshare-pickups/internal/notify"
	"github.com/nurpe/foodshare-pickups/internal/repository"
	"github.com/nurpe/foodshare-pickups/internal/testutil"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type recordingEmitter struct {
	mu     sync.Mutex
	events []notify.Event
}

func (e *recordingEmitter) Emit(event notify.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *recordingEmitter) types() []notify.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]notify.EventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	db      *gorm.DB
	lots    *repository.LotRepository
	pickups *repository.PickupRepository
	reports *repository.ReportRepository
	svc     *PickupService
	lotSvc  *LotService
	events  *recordingEmitter

	establishment model.Principal
	beneficiary   model.Principal
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	database := testutil.NewDB(t)
	clk := clock.NewFixed(testNow)
	lots := repository.NewLotRepository(database)
	pickups := repository.NewPickupRepository(database)
	events := &recordingEmitter{}
	cfg := &config.Config{}

	inventory := ledger.New(lots, clk, zerolog.Nop())
	return &harness{
		db:      database,
		lots:    lots,
		pickups: pickups,
		reports: repository.NewReportRepository(database),
		svc: NewPickupService(
			repository.NewTransactor(database),
			pickups,
			lots,
			inventory,
			events,
			clk,
			cfg,
			zerolog.Nop(),
		),
		lotSvc: NewLotService(lots, clk),
		events: events,
		establishment: model.Principal{
			UserID: uuid.New(),
			OrgID:  uuid.New(),
			Role:   model.RoleEstablishment,
		},
		beneficiary: model.Principal{
			UserID: uuid.New(),
			Role:   model.RoleBeneficiary,
		},
	}
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (h *harness) publishLot(t *testing.T, total string) *model.FoodLot {
	t.Helper()
	lot, err := h.lotSvc.Publish(context.Background(), h.establishment, PublishLotInput{
		Name:      "Sourdough bread",
		Unit:      "kg",
		Quantity:  dec(total),
		ExpiresAt: testNow.Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("publish lot: %v", err)
	}
	return lot
}

func (h *harness) create(t *testing.T, lot *model.FoodLot, requested string) *model.Pickup {
	t.Helper()
	pickup, err := h.svc.Create(context.Background(), h.beneficiary, CreatePickupInput{
		FoodLotID:         lot.ID,
		RequestedQuantity: dec(requested),
		ScheduledDate:     testNow.Add(24 * time.Hour),
		Notes:             "after 6pm",
	})
	if err != nil {
		t.Fatalf("create pickup: %v", err)
	}
	return pickup
}

func (h *harness) advanceTo(t *testing.T, pickup *model.Pickup, status lifecycle.Status) {
	t.Helper()
	ctx := context.Background()
	var err error
	switch status {
	case lifecycle.StatusConfirmed:
		_, err = h.svc.Confirm(ctx, h.establishment, pickup.ID, true, "")
	case lifecycle.StatusInProgress:
		h.advanceTo(t, pickup, lifecycle.StatusConfirmed)
		_, err = h.svc.ConfirmVisit(ctx, h.beneficiary, pickup.ID)
	case lifecycle.StatusCompleted:
		h.advanceTo(t, pickup, lifecycle.StatusInProgress)
		_, err = h.svc.Complete(ctx, h.establishment, pickup.ID, pickup.RequestedQuantity, "")
	case lifecycle.StatusRejected:
		_, err = h.svc.Confirm(ctx, h.establishment, pickup.ID, false, "closed today")
	case lifecycle.StatusCancelled:
		_, err = h.svc.Cancel(ctx, h.beneficiary, pickup.ID, "plans changed")
	}
	if err != nil {
		t.Fatalf("advance to %s: %v", status, err)
	}
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *model.Pickup {
	t.Helper()
	p, err := h.pickups.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("reload pickup: %v", err)
	}
	return p
}

func (h *harness) assertLot(t *testing.T, id uuid.UUID, available, reserved, consumed string) {
	t.Helper()
	lot, err := h.lots.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("load lot: %v", err)
	}
	if !lot.AvailableQuantity.Equal(dec(available)) ||
		!lot.ReservedQuantity.Equal(dec(reserved)) ||
		!lot.ConsumedQuantity.Equal(dec(consumed)) {
		t.Fatalf("expected lot available=%s reserved=%s consumed=%s, got %s/%s/%s",
			available, reserved, consumed,
			lot.AvailableQuantity, lot.ReservedQuantity, lot.ConsumedQuantity)
	}
	if err := ledger.CheckBalance(lot); err != nil {
		t.Fatalf("lot out of balance: %v", err)
	}
}

// assertNoOversubscription checks available + open requested == total for the lot.
func (h *harness) assertNoOversubscription(t *testing.T, lotID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	lot, err := h.lots.Get(ctx, lotID)
	if err != nil {
		t.Fatalf("load lot: %v", err)
	}
	open, err := h.pickups.ListOpenByLot(ctx, lotID)
	if err != nil {
		t.Fatalf("list open pickups: %v", err)
	}
	held := decimal.Zero
	for _, p := range open {
		if !p.Open() {
			t.Fatalf("pickup %s in %s listed as open", p.ID, p.Status)
		}
		held = held.Add(p.RequestedQuantity)
	}
	if !held.Equal(lot.ReservedQuantity) {
		t.Fatalf("reserved %s does not match open pickups %s", lot.ReservedQuantity, held)
	}
	if !lot.AvailableQuantity.Add(held).Add(lot.ConsumedQuantity).Equal(lot.TotalQuantity) {
		t.Fatalf("available %s + held %s + consumed %s != total %s",
			lot.AvailableQuantity, held, lot.ConsumedQuantity, lot.TotalQuantity)
	}
}
