// README: Delivery aggregate, status definitions and the state machine table.
package delivery

import (
	"time"

	"rewear/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Delivery is the physical fulfillment record for an order. A cancelled
// delivery is never reused: a fresh pending row replaces it and SupersededBy
// on the old row points at the replacement.
type Delivery struct {
	ID                types.ID
	OrderID           types.ID
	DriverID          *types.ID
	PickupAddressID   types.ID
	DeliveryAddressID types.ID
	Pickup            types.Point
	Dropoff           types.Point
	DistanceKm        float64
	FallbackDistance  bool
	Fee               types.Money
	DriverEarning     types.Money
	PlatformFee       types.Money
	Status            Status
	Notes             string
	CancelReason      *string
	SupersededBy      *types.ID
	AssignedAt        *time.Time
	PickedUpAt        *time.Time
	DeliveredAt       *time.Time
	CancelledAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Event struct {
	ID         int64
	DeliveryID types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the delivery state flow as code. No transition
// skips a state and nothing leaves in_transit except delivered.
var AllowedTransitions = map[Status][]Status{
	StatusPending:   {StatusAssigned, StatusCancelled},
	StatusAssigned:  {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
