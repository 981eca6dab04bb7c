// Package notify carries pickup domain events from the request path to an external
// broker. Delivery is best effort and never feeds back into the transaction that
// produced the event.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventPickupCreated        EventType = "PickupCreated"
	EventPickupConfirmed      EventType = "PickupConfirmed"
	EventPickupRejected       EventType = "PickupRejected"
	EventPickupVisitConfirmed EventType = "PickupVisitConfirmed"
	EventPickupCompleted      EventType = "PickupCompleted"
	EventPickupCancelled      EventType = "PickupCancelled"
)

type Event struct {
	Type              EventType        `json:"type"`
	PickupID          uuid.UUID        `json:"pickup_id"`
	BeneficiaryID     uuid.UUID        `json:"beneficiary_id"`
	EstablishmentID   uuid.UUID        `json:"establishment_id"`
	FoodLotID         uuid.UUID        `json:"food_lot_id"`
	RequestedQuantity decimal.Decimal  `json:"requested_quantity"`
	DeliveredQuantity *decimal.Decimal `json:"delivered_quantity,omitempty"`
	Reason            string           `json:"reason,omitempty"`
	OccurredAt        time.Time        `json:"occurred_at"`
}

// encodeEvent renders the JSON payload every broker sink sends.
func encodeEvent(event Event) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}
