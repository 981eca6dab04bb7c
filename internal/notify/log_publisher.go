package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to the service log. Used when no broker is configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	entry := p.log.Info().
		Str("type", string(event.Type)).
		Str("pickup_id", event.PickupID.String()).
		Str("beneficiary_id", event.BeneficiaryID.String()).
		Str("establishment_id", event.EstablishmentID.String()).
		Str("food_lot_id", event.FoodLotID.String()).
		Str("requested_quantity", event.RequestedQuantity.String())
	if event.DeliveredQuantity != nil {
		entry = entry.Str("delivered_quantity", event.DeliveredQuantity.String())
	}
	if event.Reason != "" {
		entry = entry.Str("reason", event.Reason)
	}
	entry.Time("occurred_at", event.OccurredAt).Msg("pickup event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
