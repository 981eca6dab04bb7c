// Package lifecycle holds the pickup state machine: the six statuses, which party may
// drive each transition, and the per-status state variants.
package lifecycle

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid state transition")

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusRejected   Status = "REJECTED"
)

var AllStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusRejected,
}

func ParseStatus(raw string) (Status, error) {
	for _, s := range AllStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown pickup status %q", raw)
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

type Action string

const (
	ActionCreate       Action = "create"
	ActionConfirm      Action = "confirm"
	ActionReject       Action = "reject"
	ActionConfirmVisit Action = "confirm_visit"
	ActionComplete     Action = "complete"
	ActionCancel       Action = "cancel"
)

// Party identifies which side of a pickup is allowed to perform an action.
type Party int

const (
	PartyBeneficiary Party = iota + 1
	PartyEstablishment
)

func (p Party) String() string {
	switch p {
	case PartyBeneficiary:
		return "beneficiary"
	case PartyEstablishment:
		return "establishment"
	default:
		return "unknown"
	}
}

type rule struct {
	from  []Status
	to    Status
	party Party
}

var rules = map[Action]rule{
	ActionCreate:       {from: nil, to: StatusPending, party: PartyBeneficiary},
	ActionConfirm:      {from: []Status{StatusPending}, to: StatusConfirmed, party: PartyEstablishment},
	ActionReject:       {from: []Status{StatusPending}, to: StatusRejected, party: PartyEstablishment},
	ActionConfirmVisit: {from: []Status{StatusConfirmed}, to: StatusInProgress, party: PartyBeneficiary},
	ActionComplete:     {from: []Status{StatusInProgress}, to: StatusCompleted, party: PartyEstablishment},
	ActionCancel:       {from: []Status{StatusPending, StatusConfirmed}, to: StatusCancelled, party: PartyBeneficiary},
}

// RequiredParty returns the side that must perform the action.
func RequiredParty(a Action) (Party, error) {
	r, ok := rules[a]
	if !ok {
		return 0, fmt.Errorf("unknown action %q", a)
	}
	return r.party, nil
}

// Next returns the status reached by applying a to from.
func Next(from Status, a Action) (Status, error) {
	r, ok := rules[a]
	if !ok {
		return "", fmt.Errorf("unknown action %q", a)
	}
	for _, s := range r.from {
		if s == from {
			return r.to, nil
		}
	}
	return "", fmt.Errorf("%w: cannot %s a %s pickup", ErrInvalidTransition, a, from)
}
