// README: Item listing model: for-sale items and donation batches.
package item

import (
	"time"

	"rewear/internal/types"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusPending   Status = "pending"
	StatusSold      Status = "sold"
	StatusDonated   Status = "donated"
)

// Item is a listing. A for-sale item has a price; a donation batch has a
// nil price and a quantity instead.
type Item struct {
	ID                        types.ID
	SellerID                  types.ID
	PickupAddressID           types.ID
	Title                     string
	Category                  string
	Condition                 string
	Size                      string
	Gender                    string
	Price                     *types.Money
	IsDonation                bool
	DonationQuantity          *int
	DonationQuantityAvailable *int
	Status                    Status
	Views                     int
	SoldAt                    *time.Time
	CreatedAt                 time.Time
	DeletedAt                 *time.Time
}

func (i *Item) Deleted() bool {
	return i.DeletedAt != nil
}
