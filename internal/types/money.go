// README: Common money value object used across modules.
package types

import "fmt"

// Money is an amount in integer cents. The platform is USD-only.
type Money struct {
	Cents int64
}

func USD(cents int64) Money {
	return Money{Cents: cents}
}

func (m Money) Dollars() float64 {
	return float64(m.Cents) / 100
}

func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

func (m Money) String() string {
	return fmt.Sprintf("$%.2f", m.Dollars())
}
