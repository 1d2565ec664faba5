// README: Order endpoints: place, list, fetch, confirm, cancel.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rewear/internal/modules/order"
	"rewear/internal/types"
)

type OrderHandler struct {
	orders *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{orders: svc}
}

type orderView struct {
	ID            types.ID   `json:"id"`
	OrderNumber   string     `json:"order_number"`
	ItemID        types.ID   `json:"item_id"`
	BuyerID       types.ID   `json:"buyer_id"`
	SellerID      types.ID   `json:"seller_id"`
	IsDonation    bool       `json:"is_donation"`
	ItemPrice     string     `json:"item_price"`
	DeliveryFee   string     `json:"delivery_fee"`
	Total         string     `json:"total"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"payment_method"`
	PaymentStatus string     `json:"payment_status"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CancelReason  *string    `json:"cancel_reason,omitempty"`
	DistributedAt *time.Time `json:"distributed_at,omitempty"`
	PeopleHelped  *int       `json:"people_helped,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func renderOrder(o *order.Order) orderView {
	return orderView{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		ItemID:        o.ItemID,
		BuyerID:       o.BuyerID,
		SellerID:      o.SellerID,
		IsDonation:    o.IsDonation,
		ItemPrice:     o.ItemPrice.String(),
		DeliveryFee:   o.DeliveryFee.String(),
		Total:         o.Total.String(),
		Status:        string(o.Status),
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: string(o.PaymentStatus),
		ConfirmedAt:   o.ConfirmedAt,
		CompletedAt:   o.CompletedAt,
		CancelledAt:   o.CancelledAt,
		CancelReason:  o.CancelReason,
		DistributedAt: o.DistributedAt,
		PeopleHelped:  o.PeopleHelped,
		CreatedAt:     o.CreatedAt,
	}
}

func renderOrders(orders []*order.Order) []orderView {
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, renderOrder(o))
	}
	return out
}

type createOrderReq struct {
	ItemID            string `json:"item_id" binding:"required"`
	DeliveryAddressID string `json:"delivery_address_id" binding:"required"`
	// DeliveryFee is the quote the client saw; the server recomputes the
	// authoritative fee inside the create transaction.
	DeliveryFee int64 `json:"delivery_fee"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.Create(c.Request.Context(), order.CreateCommand{
		Actor:             actor,
		ItemID:            types.ID(req.ItemID),
		DeliveryAddressID: types.ID(req.DeliveryAddressID),
		QuotedFee:         types.USD(req.DeliveryFee),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeData(c, http.StatusCreated, "order placed", renderOrder(o))
}

func (h *OrderHandler) ListMine(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)
	orders, err := h.orders.ListMine(c.Request.Context(), actor, limit, offset)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeData(c, http.StatusOK, "", renderOrders(orders))
}

func (h *OrderHandler) ListAsSeller(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)
	orders, err := h.orders.ListAsSeller(c.Request.Context(), actor, limit, offset)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeData(c, http.StatusOK, "", renderOrders(orders))
}

func (h *OrderHandler) Get(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.Get(c.Request.Context(), id, actor)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeData(c, http.StatusOK, "", renderOrder(o))
}

type cancelOrderReq struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cancelOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "reason is required")
		return
	}
	o, err := h.orders.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID: id, Reason: req.Reason, Actor: actor,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeData(c, http.StatusOK, "order cancelled", renderOrder(o))
}

func (h *OrderHandler) Confirm(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := h.orders.Confirm(c.Request.Context(), order.ConfirmCommand{OrderID: id, Actor: actor})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeData(c, http.StatusOK, "order confirmed", renderOrder(o))
}

func pageParams(c *gin.Context) (limit, offset int) {
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	if page < 1 {
		page = 1
	}
	return perPage, (page - 1) * perPage
}
