// README: Base handler utilities: response envelope and domain error mapping.
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"rewear/internal/http/middleware"
	"rewear/internal/maps"
	"rewear/internal/modules/address"
	"rewear/internal/modules/delivery"
	"rewear/internal/modules/donation"
	"rewear/internal/modules/driver"
	"rewear/internal/modules/item"
	"rewear/internal/modules/order"
	"rewear/internal/types"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeData(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, envelope{Success: false, Error: msg})
}

// writeDomainError maps the modules' sentinel errors onto the spec's status
// taxonomy: precondition 400/409, authorization 403, missing entities 404,
// everything else 500 with the detail kept server-side.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, delivery.ErrNotFound),
		errors.Is(err, item.ErrNotFound),
		errors.Is(err, address.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())

	case errors.Is(err, order.ErrForbidden),
		errors.Is(err, delivery.ErrForbidden),
		errors.Is(err, donation.ErrNotCharity):
		writeError(c, http.StatusForbidden, err.Error())

	case errors.Is(err, order.ErrInvalidState),
		errors.Is(err, order.ErrOwnItem),
		errors.Is(err, order.ErrItemUnavailable),
		errors.Is(err, order.ErrAddressNotOwned),
		errors.Is(err, delivery.ErrInvalidState),
		errors.Is(err, delivery.ErrAlreadyPickedUp),
		errors.Is(err, delivery.ErrDriverNotApproved),
		errors.Is(err, delivery.ErrDriverAtCapacity),
		errors.Is(err, donation.ErrNotDonation),
		errors.Is(err, donation.ErrAlreadyClaimed),
		errors.Is(err, donation.ErrNotEligible),
		errors.Is(err, donation.ErrAlreadyDistributed),
		errors.Is(err, driver.ErrNotDriver),
		errors.Is(err, driver.ErrNoneAvailable),
		errors.Is(err, maps.ErrBadCoordinates),
		errors.Is(err, maps.ErrDegenerateRoute):
		writeError(c, http.StatusBadRequest, err.Error())

	default:
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// caller fetches the authenticated Actor; a miss means the route was wired
// without the Auth middleware.
func caller(c *gin.Context) (types.Actor, bool) {
	actor, ok := middleware.CallerActor(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "authentication required")
	}
	return actor, ok
}

func pathID(c *gin.Context, name string) (types.ID, bool) {
	v := c.Param(name)
	if v == "" {
		writeError(c, http.StatusBadRequest, "missing "+name)
		return "", false
	}
	return types.ID(v), true
}
