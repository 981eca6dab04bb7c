package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/foodshare-pickups/internal/lifecycle"
)

type StatusCount struct {
	Status lifecycle.Status
	Count  int64
}

type PickupStatistics struct {
	TotalPickups         int64                      `json:"total_pickups"`
	ByStatus             map[lifecycle.Status]int64 `json:"by_status"`
	TotalCompleted       int64                      `json:"total_completed"`
	TotalCancelled       int64                      `json:"total_cancelled"`
	TotalRejected        int64                      `json:"total_rejected"`
	CompletionRate       float64                    `json:"completion_rate"`
	CancellationRate     float64                    `json:"cancellation_rate"`
	RejectionRate        float64                    `json:"rejection_rate"`
	RequestedCompleted   decimal.Decimal            `json:"requested_completed"`
	DeliveredCompleted   decimal.Decimal            `json:"delivered_completed"`
	AverageDeliveryRatio float64                    `json:"average_delivery_ratio"`
}

// PickupRow is a pickup flattened with its lot for listings and exports.
type PickupRow struct {
	Pickup  Pickup
	LotName string
	Unit    string
}

type StatisticsReport struct {
	ScopeLabel  string
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	GeneratedAt time.Time
	Statistics  PickupStatistics
	Pickups     []PickupRow
}

type HandoverReceipt struct {
	Pickup        Pickup
	Lot           FoodLot
	Establishment Establishment
	IssuedAt      time.Time
}
