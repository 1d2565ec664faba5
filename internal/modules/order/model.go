// README: Order aggregate, status definitions and the state machine table.
package order

import (
	"fmt"
	"time"

	"rewear/internal/types"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInDelivery Status = "in_delivery"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Order is a purchase (or donation claim) of a single item. Cash on delivery
// is the only payment method; payment_status flips to paid at handoff.
type Order struct {
	ID                types.ID
	OrderNumber       string
	BuyerID           types.ID
	SellerID          types.ID
	ItemID            types.ID
	DeliveryAddressID types.ID
	IsDonation        bool
	ItemPrice         types.Money
	DeliveryFee       types.Money
	Total             types.Money
	Status            Status
	PaymentMethod     string
	PaymentStatus     PaymentStatus
	CancelReason      *string
	ConfirmedAt       *time.Time
	CancelledAt       *time.Time
	CompletedAt       *time.Time
	DistributedAt     *time.Time
	DistributionNotes *string
	PeopleHelped      *int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AllowedTransitions represents the order state flow as code. confirmed can
// fall back to pending when its delivery is cancelled before pickup.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInDelivery, StatusCancelled, StatusPending},
	StatusInDelivery: {StatusCompleted},
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

// FormatOrderNumber renders the public order number: RW-YYYYMMDD-NNNNN with a
// day-scoped sequence.
func FormatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("RW-%s-%05d", day.Format("20060102"), seq)
}
