package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/foodshare-pickups/internal/ledger"
	"github.com/nurpe/foodshare-pickups/internal/lifecycle"
	"github.com/nurpe/foodshare-pickups/internal/model"
	"github.com/nurpe/foodshare-pickups/internal/notify"
	"github.com/nurpe/foodshare-pickups/internal/repository"
)

func TestCreateReservesStock(t *testing.T) {
	h := newHarness(t)
	lot := h.publishLot(t, "10")

	pickup := h.create(t, lot, "4")

	if pickup.Status != lifecycle.StatusPending {
		t.Fatalf("expected PENDING, got %s", pickup.Status)
	}
	if !pickup.CreatedAt.Equal(testNow) {
		t.Fatalf("expected created_at %s, got %s", testNow, pickup.CreatedAt)
	}
	if pickup.EstablishmentID != h.establishment.OrgID || pickup.BeneficiaryID != h.beneficiary.UserID {
		t.Fatalf("unexpected parties %+v", pickup)
	}
	if pickup.ConfirmedAt != nil || pickup.CancelledAt != nil || pickup.DeliveredQuantity.Valid {
		t.Fatalf("new pickup must not carry later stamps")
	}
	h.assertLot(t, lot.ID, "6", "4", "0")

	stored := h.reload(t, pickup.ID)
	if stored.BeneficiaryNotes != "after 6pm" || !stored.RequestedQuantity.Equal(dec("4")) {
		t.Fatalf("unexpected stored pickup %+v", stored)
	}
	if got := h.events.types(); len(got) != 1 || got[0] != notify.EventPickupCreated {
		t.Fatalf("expected PickupCreated, got %v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	lot := h.publishLot(t, "10")

	expired := &model.FoodLot{
		ID:                uuid.New(),
		EstablishmentID:   h.establishment.OrgID,
		Name:              "Yoghurt",
		Unit:              "pcs",
		TotalQuantity:     dec("5"),
		AvailableQuantity: dec("5"),
		ReservedQuantity:  decimal.Zero,
		ConsumedQuantity:  decimal.Zero,
		ExpiresAt:         testNow.Add(-time.Hour),
		CreatedAt:         testNow.Add(-48 * time.Hour),
		UpdatedAt:         testNow.Add(-48 * time.Hour),
		Version:           1,
	}
	if err := h.lots.Create(context.Background(), expired); err != nil {
		t.Fatalf("seed expired lot: %v", err)
	}
	exhausted := &model.FoodLot{
		ID:                uuid.New(),
		EstablishmentID:   h.establishment.OrgID,
		Name:              "Baguettes",
		Unit:              "pcs",
		TotalQuantity:     dec("5"),
		AvailableQuantity: decimal.Zero,
		ReservedQuantity:  decimal.Zero,
		ConsumedQuantity:  dec("5"),
		ExpiresAt:         testNow.Add(24 * time.Hour),
		CreatedAt:         testNow.Add(-time.Hour),
		UpdatedAt:         testNow.Add(-time.Hour),
		Version:           1,
	}
	if err := h.lots.Create(context.Background(), exhausted); err != nil {
		t.Fatalf("seed exhausted lot: %v", err)
	}

	tomorrow := testNow.Add(24 * time.Hour)
	tests := []struct {
		name      string
		principal model.Principal
		input     CreatePickupInput
		wantErr   error
	}{
		{"establishment cannot request", h.establishment, CreatePickupInput{FoodLotID: lot.ID, RequestedQuantity: dec("1"), ScheduledDate: tomorrow}, ErrForbidden},
		{"zero quantity", h.beneficiary, CreatePickupInput{FoodLotID: lot.ID, RequestedQuantity: decimal.Zero, ScheduledDate: tomorrow}, ErrInvalidInput},
		{"negative quantity", h.beneficiary, CreatePickupInput{FoodLotID: lot.ID, RequestedQuantity: dec("-2"), ScheduledDate: tomorrow}, ErrInvalidInput},
		{"scheduled now", h.beneficiary, CreatePickupInput{FoodLotID: lot.ID, RequestedQuantity: dec("1"), ScheduledDate: testNow}, ErrInvalidInput},
		{"scheduled in the past", h.beneficiary, CreatePickupInput{FoodLotID: lot.ID, RequestedQuantity: dec("1"), ScheduledDate: testNow.Add(-time.Hour)}, ErrInvalidInput},
		{"missing lot", h.beneficiary, CreatePickupInput{RequestedQuantity: dec("1"), ScheduledDate: tomorrow}, ErrInvalidInput},
		{"unknown lot", h.beneficiary, CreatePickupInput{FoodLotID: uuid.New(), RequestedQuantity: dec("1"), ScheduledDate: tomorrow}, ErrNotFound},
		{"expired lot", h.beneficiary, CreatePickupInput{FoodLotID: expired.ID, RequestedQuantity: dec("1"), ScheduledDate: tomorrow}, ErrInvalidInput},
		{"more than available", h.beneficiary, CreatePickupInput{FoodLotID: lot.ID, RequestedQuantity: dec("10.5"), ScheduledDate: tomorrow}, ErrQuantityExceedsAvailability},
		{"more than three decimals", h.beneficiary, CreatePickupInput{FoodLotID: lot.ID, RequestedQuantity: dec("1.0005"), ScheduledDate: tomorrow}, ErrInvalidInput},
		{"fraction below storage scale", h.beneficiary, CreatePickupInput{FoodLotID: lot.ID, RequestedQuantity: dec("1.0004"), ScheduledDate: tomorrow}, ErrInvalidInput},
		{"beyond column range", h.beneficiary, CreatePickupInput{FoodLotID: lot.ID, RequestedQuantity: dec("100000000000"), ScheduledDate: tomorrow}, ErrInvalidInput},
		{"exhausted lot", h.beneficiary, CreatePickupInput{FoodLotID: exhausted.ID, RequestedQuantity: dec("1"), ScheduledDate: tomorrow}, ledger.ErrInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Create(context.Background(), tt.principal, tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	h.assertLot(t, lot.ID, "10", "0", "0")
	h.assertLot(t, expired.ID, "5", "0", "0")
	h.assertLot(t, exhausted.ID, "0", "0", "5")
	if len(h.events.types()) != 0 {
		t.Fatalf("failed creates must not emit events")
	}
}

func TestCreateShortageMatchesBothErrors(t *testing.T) {
	h := newHarness(t)
	lot := h.publishLot(t, "3")

	_, err := h.svc.Create(context.Background(), h.beneficiary, CreatePickupInput{
		FoodLotID:         lot.ID,
		RequestedQuantity: dec("4"),
		ScheduledDate:     testNow.Add(time.Hour),
	})
	if !errors.Is(err, ErrQuantityExceedsAvailability) || !errors.Is(err, ledger.ErrInsufficientStock) {
		t.Fatalf("expected quantity error wrapping insufficient stock, got %v", err)
	}

	pickups, err := h.pickups.List(context.Background(), principalFilterOrFail(t, h.beneficiary))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pickups) != 0 {
		t.Fatalf("expected no pickup to be stored, got %d", len(pickups))
	}
}

func TestConcurrentCreatesDoNotOversubscribe(t *testing.T) {
	h := newHarness(t)
	lot := h.publishLot(t, "10")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			beneficiary := model.Principal{UserID: uuid.New(), Role: model.RoleBeneficiary}
			_, errs[i] = h.svc.Create(context.Background(), beneficiary, CreatePickupInput{
				FoodLotID:         lot.ID,
				RequestedQuantity: dec("6"),
				ScheduledDate:     testNow.Add(24 * time.Hour),
			})
		}(i)
	}
	wg.Wait()

	succeeded, short := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledger.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 || short != 1 {
		t.Fatalf("expected one success and one shortage, got %d and %d", succeeded, short)
	}
	h.assertLot(t, lot.ID, "4", "6", "0")
	h.assertNoOversubscription(t, lot.ID)
}

func TestHappyPath(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	lot := h.publishLot(t, "20")
	pickup := h.create(t, lot, "5")

	confirmed, err := h.svc.Confirm(ctx, h.establishment, pickup.ID, true, "ring the bell")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != lifecycle.StatusConfirmed || confirmed.ConfirmedAt == nil {
		t.Fatalf("unexpected confirmed pickup %+v", confirmed)
	}
	h.assertLot(t, lot.ID, "15", "5", "0")

	visiting, err := h.svc.ConfirmVisit(ctx, h.beneficiary, pickup.ID)
	if err != nil {
		t.Fatalf("confirm visit: %v", err)
	}
	if visiting.Status != lifecycle.StatusInProgress || visiting.VisitConfirmedAt == nil {
		t.Fatalf("unexpected visiting pickup %+v", visiting)
	}

	completed, err := h.svc.Complete(ctx, h.establishment, pickup.ID, dec("5"), "all handed over")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != lifecycle.StatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("unexpected completed pickup %+v", completed)
	}
	h.assertLot(t, lot.ID, "15", "0", "5")

	stored := h.reload(t, pickup.ID)
	if !stored.DeliveredQuantity.Valid || !stored.DeliveredQuantity.Decimal.Equal(dec("5")) {
		t.Fatalf("expected delivered 5, got %+v", stored.DeliveredQuantity)
	}
	if stored.EstablishmentNotes != "all handed over" {
		t.Fatalf("expected completion notes, got %q", stored.EstablishmentNotes)
	}
	if _, err := stored.State(); err != nil {
		t.Fatalf("stored pickup does not decode: %v", err)
	}

	if _, err := h.svc.Cancel(ctx, h.beneficiary, pickup.ID, "too late"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition after completion, got %v", err)
	}

	want := []notify.EventType{
		notify.EventPickupCreated,
		notify.EventPickupConfirmed,
		notify.EventPickupVisitConfirmed,
		notify.EventPickupCompleted,
	}
	got := h.events.types()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, got)
		}
	}
}

func TestRejectionReleasesStock(t *testing.T) {
	h := newHarness(t)
	lot := h.publishLot(t, "10")
	pickup := h.create(t, lot, "4")
	h.assertLot(t, lot.ID, "6", "4", "0")

	rejected, err := h.svc.Confirm(context.Background(), h.establishment, pickup.ID, false, "closing early")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != lifecycle.StatusRejected || rejected.CancelledAt == nil {
		t.Fatalf("unexpected rejected pickup %+v", rejected)
	}
	if rejected.ConfirmedAt != nil {
		t.Fatalf("rejection must not stamp confirmed_at")
	}
	h.assertLot(t, lot.ID, "10", "0", "0")

	got := h.events.types()
	if got[len(got)-1] != notify.EventPickupRejected {
		t.Fatalf("expected PickupRejected last, got %v", got)
	}
}

func TestPartialFulfillment(t *testing.T) {
	h := newHarness(t)
	lot := h.publishLot(t, "10")
	pickup := h.create(t, lot, "5")
	h.advanceTo(t, pickup, lifecycle.StatusInProgress)

	completed, err := h.svc.Complete(context.Background(), h.establishment, pickup.ID, dec("3"), "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !completed.DeliveredQuantity.Decimal.Equal(dec("3")) || !completed.RequestedQuantity.Equal(dec("5")) {
		t.Fatalf("expected requested 5 delivered 3, got %+v", completed)
	}
	// Full consumption would leave 5 available; the 2 undelivered units come back.
	h.assertLot(t, lot.ID, "7", "0", "3")

	var evt notify.Event
	for _, e := range h.events.events {
		if e.Type == notify.EventPickupCompleted {
			evt = e
		}
	}
	if evt.DeliveredQuantity == nil || !evt.DeliveredQuantity.Equal(dec("3")) {
		t.Fatalf("expected completion event with delivered 3, got %+v", evt)
	}
}

func TestCompleteRejectsInvalidDelivery(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	lot := h.publishLot(t, "10")
	pickup := h.create(t, lot, "5")
	h.advanceTo(t, pickup, lifecycle.StatusInProgress)

	for _, delivered := range []string{"0", "-1", "5.001", "4.9995", "0.0001"} {
		if _, err := h.svc.Complete(ctx, h.establishment, pickup.ID, dec(delivered), ""); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("delivered %s: expected ErrInvalidInput, got %v", delivered, err)
		}
	}
	if got := h.reload(t, pickup.ID); got.Status != lifecycle.StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", got.Status)
	}
	h.assertLot(t, lot.ID, "5", "5", "0")

	if _, err := h.svc.Complete(ctx, h.establishment, pickup.ID, dec("4.9990"), ""); err != nil {
		t.Fatalf("trailing zeros within scale must be accepted, got %v", err)
	}
	h.assertLot(t, lot.ID, "5.001", "0", "4.999")
}

func TestWrongActorIsForbidden(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	lot := h.publishLot(t, "10")
	pickup := h.create(t, lot, "4")

	stranger := model.Principal{UserID: uuid.New(), Role: model.RoleBeneficiary}
	otherShop := model.Principal{UserID: uuid.New(), OrgID: uuid.New(), Role: model.RoleEstablishment}
	admin := model.Principal{UserID: uuid.New(), Role: model.RoleAdmin}

	tests := []struct {
		name string
		call func() error
	}{
		{"other beneficiary cancels", func() error {
			_, err := h.svc.Cancel(ctx, stranger, pickup.ID, "not mine")
			return err
		}},
		{"establishment cancels", func() error {
			_, err := h.svc.Cancel(ctx, h.establishment, pickup.ID, "no")
			return err
		}},
		{"other establishment confirms", func() error {
			_, err := h.svc.Confirm(ctx, otherShop, pickup.ID, true, "")
			return err
		}},
		{"beneficiary confirms own request", func() error {
			_, err := h.svc.Confirm(ctx, h.beneficiary, pickup.ID, true, "")
			return err
		}},
		{"admin rejects", func() error {
			_, err := h.svc.Confirm(ctx, admin, pickup.ID, false, "")
			return err
		}},
		{"establishment confirms visit", func() error {
			_, err := h.svc.ConfirmVisit(ctx, h.establishment, pickup.ID)
			return err
		}},
		{"beneficiary completes", func() error {
			_, err := h.svc.Complete(ctx, h.beneficiary, pickup.ID, dec("1"), "")
			return err
		}},
		{"stranger reads", func() error {
			_, err := h.svc.Get(ctx, stranger, pickup.ID)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrForbidden) {
				t.Fatalf("expected ErrForbidden, got %v", err)
			}
		})
	}

	stored := h.reload(t, pickup.ID)
	if stored.Status != lifecycle.StatusPending || stored.Version != pickup.Version {
		t.Fatalf("pickup changed: status=%s version=%d", stored.Status, stored.Version)
	}
	h.assertLot(t, lot.ID, "6", "4", "0")
}

func TestAuthorizationPrecedesStatusCheck(t *testing.T) {
	h := newHarness(t)
	lot := h.publishLot(t, "10")
	pickup := h.create(t, lot, "4")
	h.advanceTo(t, pickup, lifecycle.StatusCancelled)

	stranger := model.Principal{UserID: uuid.New(), Role: model.RoleBeneficiary}
	if _, err := h.svc.Cancel(context.Background(), stranger, pickup.ID, "again"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestDoubleCancelDoesNotDoubleCredit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	lot := h.publishLot(t, "10")
	pickup := h.create(t, lot, "4")
	h.advanceTo(t, pickup, lifecycle.StatusConfirmed)

	cancelled, err := h.svc.Cancel(ctx, h.beneficiary, pickup.ID, "  no transport  ")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.CancellationReason == nil || *cancelled.CancellationReason != "no transport" {
		t.Fatalf("expected trimmed reason, got %v", cancelled.CancellationReason)
	}
	if cancelled.ConfirmedAt == nil {
		t.Fatalf("cancel after confirmation keeps confirmed_at")
	}
	h.assertLot(t, lot.ID, "10", "0", "0")

	if _, err := h.svc.Cancel(ctx, h.beneficiary, pickup.ID, "again"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	h.assertLot(t, lot.ID, "10", "0", "0")
}

func TestConcurrentCancelsReleaseOnce(t *testing.T) {
	h := newHarness(t)
	lot := h.publishLot(t, "10")
	pickup := h.create(t, lot, "4")

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.Cancel(context.Background(), h.beneficiary, pickup.ID, "race")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInvalidStateTransition):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one cancel to win, got %d", succeeded)
	}
	h.assertLot(t, lot.ID, "10", "0", "0")
}

func TestCancelRequiresReason(t *testing.T) {
	h := newHarness(t)
	lot := h.publishLot(t, "10")
	pickup := h.create(t, lot, "4")

	if _, err := h.svc.Cancel(context.Background(), h.beneficiary, pickup.ID, "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	h.assertLot(t, lot.ID, "6", "4", "0")
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	lot := h.publishLot(t, "50")

	pending := h.create(t, lot, "1")
	if _, err := h.svc.ConfirmVisit(ctx, h.beneficiary, pending.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("visit on PENDING: expected ErrInvalidStateTransition, got %v", err)
	}
	if _, err := h.svc.Complete(ctx, h.establishment, pending.ID, dec("1"), ""); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("complete on PENDING: expected ErrInvalidStateTransition, got %v", err)
	}

	inProgress := h.create(t, lot, "1")
	h.advanceTo(t, inProgress, lifecycle.StatusInProgress)
	if _, err := h.svc.Cancel(ctx, h.beneficiary, inProgress.ID, "changed my mind"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("cancel on IN_PROGRESS: expected ErrInvalidStateTransition, got %v", err)
	}
	if _, err := h.svc.Confirm(ctx, h.establishment, inProgress.ID, true, ""); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("confirm on IN_PROGRESS: expected ErrInvalidStateTransition, got %v", err)
	}

	if _, err := h.svc.Confirm(ctx, h.establishment, uuid.New(), true, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown pickup: expected ErrNotFound, got %v", err)
	}
	h.assertNoOversubscription(t, lot.ID)
}

func TestTerminalPickupsAreImmutable(t *testing.T) {
	ctx := context.Background()

	for _, terminal := range []lifecycle.Status{lifecycle.StatusCompleted, lifecycle.StatusCancelled, lifecycle.StatusRejected} {
		t.Run(string(terminal), func(t *testing.T) {
			h := newHarness(t)
			lot := h.publishLot(t, "10")
			pickup := h.create(t, lot, "4")
			h.advanceTo(t, pickup, terminal)

			before := h.reload(t, pickup.ID)
			lotBefore, err := h.lots.Get(ctx, lot.ID)
			if err != nil {
				t.Fatalf("load lot: %v", err)
			}

			attempts := []func() error{
				func() error { _, err := h.svc.Confirm(ctx, h.establishment, pickup.ID, true, "x"); return err },
				func() error { _, err := h.svc.Confirm(ctx, h.establishment, pickup.ID, false, "x"); return err },
				func() error { _, err := h.svc.ConfirmVisit(ctx, h.beneficiary, pickup.ID); return err },
				func() error { _, err := h.svc.Complete(ctx, h.establishment, pickup.ID, dec("1"), "x"); return err },
				func() error { _, err := h.svc.Cancel(ctx, h.beneficiary, pickup.ID, "x"); return err },
			}
			for i, attempt := range attempts {
				if err := attempt(); !errors.Is(err, ErrInvalidStateTransition) {
					t.Fatalf("attempt %d: expected ErrInvalidStateTransition, got %v", i, err)
				}
			}

			after := h.reload(t, pickup.ID)
			if after.Status != before.Status || after.Version != before.Version ||
				!after.UpdatedAt.Equal(before.UpdatedAt) || after.EstablishmentNotes != before.EstablishmentNotes {
				t.Fatalf("terminal pickup changed: before %+v after %+v", before, after)
			}
			h.assertLot(t, lot.ID,
				lotBefore.AvailableQuantity.String(),
				lotBefore.ReservedQuantity.String(),
				lotBefore.ConsumedQuantity.String())
		})
	}
}

func TestReservationsStayBalanced(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	lot := h.publishLot(t, "30")

	steps := []struct {
		requested string
		to        lifecycle.Status
	}{
		{"4", lifecycle.StatusPending},
		{"3", lifecycle.StatusConfirmed},
		{"5", lifecycle.StatusRejected},
		{"6", lifecycle.StatusCancelled},
		{"2.5", lifecycle.StatusInProgress},
		{"7", lifecycle.StatusCompleted},
	}
	for _, step := range steps {
		p := h.create(t, lot, step.requested)
		h.assertNoOversubscription(t, lot.ID)
		if step.to != lifecycle.StatusPending {
			h.advanceTo(t, p, step.to)
		}
		h.assertNoOversubscription(t, lot.ID)
	}

	// 4 + 3 + 2.5 still open, 7 consumed.
	h.assertLot(t, lot.ID, "13.5", "9.5", "7")

	if _, err := h.svc.Create(ctx, h.beneficiary, CreatePickupInput{
		FoodLotID:         lot.ID,
		RequestedQuantity: dec("13.6"),
		ScheduledDate:     testNow.Add(time.Hour),
	}); !errors.Is(err, ErrQuantityExceedsAvailability) {
		t.Fatalf("expected ErrQuantityExceedsAvailability, got %v", err)
	}
	h.assertNoOversubscription(t, lot.ID)
}

func TestGetAndList(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	lot := h.publishLot(t, "10")
	first := h.create(t, lot, "1")
	second := h.create(t, lot, "2")
	h.advanceTo(t, second, lifecycle.StatusConfirmed)

	other := model.Principal{UserID: uuid.New(), Role: model.RoleBeneficiary}
	if _, err := h.svc.Create(ctx, other, CreatePickupInput{
		FoodLotID:         lot.ID,
		RequestedQuantity: dec("1"),
		ScheduledDate:     testNow.Add(time.Hour),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := h.svc.Get(ctx, h.establishment, first.ID)
	if err != nil || got.ID != first.ID {
		t.Fatalf("establishment should see pickup: %v", err)
	}
	if _, err := h.svc.Get(ctx, h.beneficiary, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mine, err := h.svc.List(ctx, h.beneficiary, ListPickupsFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("beneficiary should see 2 pickups, got %d", len(mine))
	}

	all, err := h.svc.List(ctx, h.establishment, ListPickupsFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("establishment should see 3 pickups, got %d", len(all))
	}

	status := lifecycle.StatusConfirmed
	confirmed, err := h.svc.List(ctx, h.establishment, ListPickupsFilter{Status: &status})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(confirmed) != 1 || confirmed[0].ID != second.ID {
		t.Fatalf("expected only the confirmed pickup, got %+v", confirmed)
	}

	if _, err := h.svc.List(ctx, model.Principal{Role: "GUEST"}, ListPickupsFilter{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unknown role, got %v", err)
	}
}

func principalFilterOrFail(t *testing.T, principal model.Principal) repository.PickupFilter {
	t.Helper()
	f, err := principalFilter(principal)
	if err != nil {
		t.Fatalf("principal filter: %v", err)
	}
	return f
}
