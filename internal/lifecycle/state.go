package lifecycle

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// State is one of Pending, Confirmed, InProgress, Completed, Cancelled or Rejected.
// Each variant carries only the timestamps and outcome fields that exist in that status.
type State interface {
	Status() Status
	Stamps() Stamps
	isState()
}

// Stamps is the flat, nullable projection of a State used for persistence.
type Stamps struct {
	CreatedAt        time.Time
	ConfirmedAt      *time.Time
	VisitConfirmedAt *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	Delivered        decimal.NullDecimal
	Reason           *string
}

type Pending struct {
	CreatedAt time.Time
}

type Confirmed struct {
	CreatedAt   time.Time
	ConfirmedAt time.Time
}

type InProgress struct {
	CreatedAt        time.Time
	ConfirmedAt      time.Time
	VisitConfirmedAt time.Time
}

type Completed struct {
	CreatedAt        time.Time
	ConfirmedAt      time.Time
	VisitConfirmedAt time.Time
	CompletedAt      time.Time
	Delivered        decimal.Decimal
}

type Rejected struct {
	CreatedAt  time.Time
	RejectedAt time.Time
}

// Cancelled keeps ConfirmedAt when the establishment had already confirmed.
type Cancelled struct {
	CreatedAt   time.Time
	ConfirmedAt *time.Time
	CancelledAt time.Time
	Reason      string
}

func NewPending(at time.Time) Pending {
	return Pending{CreatedAt: at}
}

func (p Pending) Confirm(at time.Time) Confirmed {
	return Confirmed{CreatedAt: p.CreatedAt, ConfirmedAt: at}
}

func (p Pending) Reject(at time.Time) Rejected {
	return Rejected{CreatedAt: p.CreatedAt, RejectedAt: at}
}

func (p Pending) Cancel(at time.Time, reason string) Cancelled {
	return Cancelled{CreatedAt: p.CreatedAt, CancelledAt: at, Reason: reason}
}

func (c Confirmed) ConfirmVisit(at time.Time) InProgress {
	return InProgress{CreatedAt: c.CreatedAt, ConfirmedAt: c.ConfirmedAt, VisitConfirmedAt: at}
}

func (c Confirmed) Cancel(at time.Time, reason string) Cancelled {
	confirmedAt := c.ConfirmedAt
	return Cancelled{CreatedAt: c.CreatedAt, ConfirmedAt: &confirmedAt, CancelledAt: at, Reason: reason}
}

func (i InProgress) Complete(at time.Time, delivered decimal.Decimal) Completed {
	return Completed{
		CreatedAt:        i.CreatedAt,
		ConfirmedAt:      i.ConfirmedAt,
		VisitConfirmedAt: i.VisitConfirmedAt,
		CompletedAt:      at,
		Delivered:        delivered,
	}
}

func (Pending) Status() Status    { return StatusPending }
func (Confirmed) Status() Status  { return StatusConfirmed }
func (InProgress) Status() Status { return StatusInProgress }
func (Completed) Status() Status  { return StatusCompleted }
func (Rejected) Status() Status   { return StatusRejected }
func (Cancelled) Status() Status  { return StatusCancelled }

func (Pending) isState()    {}
func (Confirmed) isState()  {}
func (InProgress) isState() {}
func (Completed) isState()  {}
func (Rejected) isState()   {}
func (Cancelled) isState()  {}

func (p Pending) Stamps() Stamps {
	return Stamps{CreatedAt: p.CreatedAt}
}

func (c Confirmed) Stamps() Stamps {
	return Stamps{CreatedAt: c.CreatedAt, ConfirmedAt: timePtr(c.ConfirmedAt)}
}

func (i InProgress) Stamps() Stamps {
	return Stamps{
		CreatedAt:        i.CreatedAt,
		ConfirmedAt:      timePtr(i.ConfirmedAt),
		VisitConfirmedAt: timePtr(i.VisitConfirmedAt),
	}
}

func (c Completed) Stamps() Stamps {
	return Stamps{
		CreatedAt:        c.CreatedAt,
		ConfirmedAt:      timePtr(c.ConfirmedAt),
		VisitConfirmedAt: timePtr(c.VisitConfirmedAt),
		CompletedAt:      timePtr(c.CompletedAt),
		Delivered:        decimal.NewNullDecimal(c.Delivered),
	}
}

func (r Rejected) Stamps() Stamps {
	return Stamps{CreatedAt: r.CreatedAt, CancelledAt: timePtr(r.RejectedAt)}
}

func (c Cancelled) Stamps() Stamps {
	reason := c.Reason
	s := Stamps{CreatedAt: c.CreatedAt, CancelledAt: timePtr(c.CancelledAt), Reason: &reason}
	if c.ConfirmedAt != nil {
		s.ConfirmedAt = timePtr(*c.ConfirmedAt)
	}
	return s
}

// Decode rebuilds the variant for status from its persisted stamps. It fails when a
// field required by the status is missing.
func Decode(status Status, s Stamps) (State, error) {
	missing := func(field string) error {
		return fmt.Errorf("inconsistent %s pickup: %s is not set", status, field)
	}

	switch status {
	case StatusPending:
		return Pending{CreatedAt: s.CreatedAt}, nil
	case StatusConfirmed:
		if s.ConfirmedAt == nil {
			return nil, missing("confirmed_at")
		}
		return Confirmed{CreatedAt: s.CreatedAt, ConfirmedAt: *s.ConfirmedAt}, nil
	case StatusInProgress:
		if s.ConfirmedAt == nil {
			return nil, missing("confirmed_at")
		}
		if s.VisitConfirmedAt == nil {
			return nil, missing("visit_confirmed_at")
		}
		return InProgress{
			CreatedAt:        s.CreatedAt,
			ConfirmedAt:      *s.ConfirmedAt,
			VisitConfirmedAt: *s.VisitConfirmedAt,
		}, nil
	case StatusCompleted:
		switch {
		case s.ConfirmedAt == nil:
			return nil, missing("confirmed_at")
		case s.VisitConfirmedAt == nil:
			return nil, missing("visit_confirmed_at")
		case s.CompletedAt == nil:
			return nil, missing("completed_at")
		case !s.Delivered.Valid:
			return nil, missing("delivered_quantity")
		}
		return Completed{
			CreatedAt:        s.CreatedAt,
			ConfirmedAt:      *s.ConfirmedAt,
			VisitConfirmedAt: *s.VisitConfirmedAt,
			CompletedAt:      *s.CompletedAt,
			Delivered:        s.Delivered.Decimal,
		}, nil
	case StatusRejected:
		if s.CancelledAt == nil {
			return nil, missing("cancelled_at")
		}
		return Rejected{CreatedAt: s.CreatedAt, RejectedAt: *s.CancelledAt}, nil
	case StatusCancelled:
		if s.CancelledAt == nil {
			return nil, missing("cancelled_at")
		}
		c := Cancelled{CreatedAt: s.CreatedAt, CancelledAt: *s.CancelledAt}
		if s.ConfirmedAt != nil {
			c.ConfirmedAt = timePtr(*s.ConfirmedAt)
		}
		if s.Reason != nil {
			c.Reason = *s.Reason
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown pickup status %q", status)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
