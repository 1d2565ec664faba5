// README: Shared identifier and geographic primitives.
package types

import "github.com/google/uuid"

type ID string

// NewID returns a fresh random identifier for a database row.
func NewID() ID {
	return ID(uuid.NewString())
}

type Point struct {
	Lat float64
	Lng float64
}
