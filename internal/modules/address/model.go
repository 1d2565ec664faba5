// README: Delivery address model.
package address

import (
	"time"

	"rewear/internal/types"
)

type Address struct {
	ID        types.ID
	UserID    types.ID
	Label     string
	Street    string
	City      string
	Point     types.Point
	CreatedAt time.Time
}
