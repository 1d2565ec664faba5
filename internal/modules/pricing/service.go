// README: Fee computation: distance-based pricing and the driver/platform split.
package pricing

import (
	"math"

	"rewear/internal/maps"
	"rewear/internal/types"
)

// FeeForDistance implements the platform policy fee = max(1.00, round(km/4, 2)).
func FeeForDistance(distanceKm float64) types.Money {
	cents := int64(math.Round(distanceKm / kmPerDollar * 100))
	if cents < minimumFeeCents {
		cents = minimumFeeCents
	}
	return types.USD(cents)
}

// Split divides a fee into the driver earning (75%, rounded) and the platform
// fee. The platform takes the remainder so the two always sum to the fee
// exactly, cent for cent.
func Split(fee types.Money) (driverEarning, platformFee types.Money) {
	earning := int64(math.Round(float64(fee.Cents) * driverShare))
	return types.USD(earning), types.USD(fee.Cents - earning)
}

// QuoteRoute turns a computed route into a full fee breakdown.
func QuoteRoute(r maps.Route) Quote {
	fee := FeeForDistance(r.DistanceKm)
	earning, platform := Split(fee)
	return Quote{
		DistanceKm:    r.DistanceKm,
		DurationMin:   r.DurationMin,
		Fee:           fee,
		DriverEarning: earning,
		PlatformFee:   platform,
		Fallback:      r.Fallback,
	}
}
