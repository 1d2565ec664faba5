// README: Delivery fee policy constants and quote breakdown.
package pricing

import "rewear/internal/types"

const (
	// minimumFeeCents is the floor for any delivery ($1.00).
	minimumFeeCents = 100
	// kmPerDollar: $1 of fee per 4 km of road distance.
	kmPerDollar = 4.0
	// driverShare of the fee; the platform keeps the remainder.
	driverShare = 0.75
)

// Quote is the full fee breakdown attached to a delivery.
type Quote struct {
	DistanceKm    float64
	DurationMin   float64
	Fee           types.Money
	DriverEarning types.Money
	PlatformFee   types.Money
	Fallback      bool
}
