// README: Charity endpoints: donation claims and distribution reports.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rewear/internal/modules/donation"
	"rewear/internal/types"
)

type CharityHandler struct {
	donations *donation.Service
}

func NewCharityHandler(svc *donation.Service) *CharityHandler {
	return &CharityHandler{donations: svc}
}

type acceptDonationReq struct {
	DeliveryAddressID string `json:"delivery_address_id" binding:"required"`
}

func (h *CharityHandler) AcceptDonation(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return
	}
	var req acceptDonationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "delivery_address_id is required")
		return
	}
	o, err := h.donations.Accept(c.Request.Context(), donation.AcceptCommand{
		ItemID:            itemID,
		DeliveryAddressID: types.ID(req.DeliveryAddressID),
		Actor:             actor,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeData(c, http.StatusCreated, "donation accepted", renderOrder(o))
}

type markDistributedReq struct {
	PeopleHelped int    `json:"people_helped" binding:"required"`
	Notes        string `json:"notes"`
}

func (h *CharityHandler) MarkDistributed(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderId")
	if !ok {
		return
	}
	var req markDistributedReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "people_helped is required")
		return
	}
	o, err := h.donations.MarkDistributed(c.Request.Context(), donation.DistributeCommand{
		OrderID:      orderID,
		PeopleHelped: req.PeopleHelped,
		Notes:        req.Notes,
		Actor:        actor,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeData(c, http.StatusOK, "donation distributed", renderOrder(o))
}
