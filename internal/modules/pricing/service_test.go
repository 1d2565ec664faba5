package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rewear/internal/maps"
	"rewear/internal/types"
)

func TestFeeForDistance(t *testing.T) {
	tests := []struct {
		name      string
		km        float64
		wantCents int64
	}{
		{"zero distance hits the floor", 0, 100},
		{"short hop hits the floor", 1.2, 100},
		{"exactly at the floor", 4.0, 100},
		{"10 km -> $2.50", 10.0, 250},
		{"rounds half up", 10.1, 253}, // 10.1/4 = 2.525
		{"long haul", 120.0, 3000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FeeForDistance(tt.km)
			assert.Equal(t, tt.wantCents, got.Cents)
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name         string
		feeCents     int64
		wantEarning  int64
		wantPlatform int64
	}{
		{"$2.50 -> 1.88 / 0.62", 250, 188, 62},
		{"$1.00 minimum", 100, 75, 25},
		{"odd cent goes to driver", 101, 76, 25},
		{"large fee", 3000, 2250, 750},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			earning, platform := Split(types.USD(tt.feeCents))
			assert.Equal(t, tt.wantEarning, earning.Cents)
			assert.Equal(t, tt.wantPlatform, platform.Cents)
		})
	}
}

// The split must always sum back to the fee, for any distance.
func TestSplitSumInvariant(t *testing.T) {
	for km := 0.0; km < 200; km += 0.37 {
		fee := FeeForDistance(km)
		earning, platform := Split(fee)
		require.Equal(t, fee.Cents, earning.Cents+platform.Cents, "km=%f", km)
	}
}

func TestQuoteRoute(t *testing.T) {
	q := QuoteRoute(maps.Route{DistanceKm: 10, DurationMin: 22, Fallback: true})
	assert.Equal(t, int64(250), q.Fee.Cents)
	assert.Equal(t, int64(188), q.DriverEarning.Cents)
	assert.Equal(t, int64(62), q.PlatformFee.Cents)
	assert.True(t, q.Fallback)
	assert.Equal(t, 22.0, q.DurationMin)
}
