// README: Delivery endpoints: quote, fetch, driver list, assign, pickup,
// deliver, cancel.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rewear/internal/modules/delivery"
	"rewear/internal/types"
)

type DeliveryHandler struct {
	deliveries *delivery.Service
}

func NewDeliveryHandler(svc *delivery.Service) *DeliveryHandler {
	return &DeliveryHandler{deliveries: svc}
}

type deliveryView struct {
	ID               types.ID   `json:"id"`
	OrderID          types.ID   `json:"order_id"`
	DriverID         *types.ID  `json:"driver_id,omitempty"`
	Status           string     `json:"status"`
	DistanceKm       float64    `json:"distance_km"`
	FallbackDistance bool       `json:"fallback_distance"`
	Fee              string     `json:"delivery_fee"`
	DriverEarning    string     `json:"driver_earning"`
	PlatformFee      string     `json:"platform_fee"`
	Notes            string     `json:"notes,omitempty"`
	CancelReason     *string    `json:"cancel_reason,omitempty"`
	SupersededBy     *types.ID  `json:"superseded_by,omitempty"`
	AssignedAt       *time.Time `json:"assigned_at,omitempty"`
	PickedUpAt       *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func renderDelivery(d *delivery.Delivery) deliveryView {
	return deliveryView{
		ID:               d.ID,
		OrderID:          d.OrderID,
		DriverID:         d.DriverID,
		Status:           string(d.Status),
		DistanceKm:       d.DistanceKm,
		FallbackDistance: d.FallbackDistance,
		Fee:              d.Fee.String(),
		DriverEarning:    d.DriverEarning.String(),
		PlatformFee:      d.PlatformFee.String(),
		Notes:            d.Notes,
		CancelReason:     d.CancelReason,
		SupersededBy:     d.SupersededBy,
		AssignedAt:       d.AssignedAt,
		PickedUpAt:       d.PickedUpAt,
		DeliveredAt:      d.DeliveredAt,
		CancelledAt:      d.CancelledAt,
		CreatedAt:        d.CreatedAt,
	}
}

type quoteReq struct {
	PickupLat   float64 `json:"pickup_lat"`
	PickupLng   float64 `json:"pickup_lng"`
	DeliveryLat float64 `json:"delivery_lat"`
	DeliveryLng float64 `json:"delivery_lng"`
}

// Quote prices a hypothetical route so the client can show the fee before an
// order is placed. Nothing is persisted.
func (h *DeliveryHandler) Quote(c *gin.Context) {
	if _, ok := caller(c); !ok {
		return
	}
	var req quoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	q, err := h.deliveries.Quote(c.Request.Context(),
		types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		types.Point{Lat: req.DeliveryLat, Lng: req.DeliveryLng})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeData(c, http.StatusOK, "", gin.H{
		"distance_km":    q.DistanceKm,
		"duration_min":   q.DurationMin,
		"delivery_fee":   q.Fee.String(),
		"driver_earning": q.DriverEarning.String(),
		"platform_fee":   q.PlatformFee.String(),
		"fallback":       q.Fallback,
	})
}

func (h *DeliveryHandler) Get(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	d, err := h.deliveries.Get(c.Request.Context(), id, actor)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeData(c, http.StatusOK, "", renderDelivery(d))
}

func (h *DeliveryHandler) ListAsDriver(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)
	list, err := h.deliveries.ListByDriver(c.Request.Context(), actor, limit, offset)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]deliveryView, 0, len(list))
	for _, d := range list {
		out = append(out, renderDelivery(d))
	}
	writeData(c, http.StatusOK, "", out)
}

type assignReq struct {
	DriverID string `json:"driver_id"`
}

func (h *DeliveryHandler) Assign(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	cmd := delivery.AssignCommand{DeliveryID: id, Actor: actor}
	if req.DriverID != "" {
		driverID := types.ID(req.DriverID)
		cmd.DriverID = &driverID
	}
	d, err := h.deliveries.AssignDriver(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeData(c, http.StatusOK, "driver assigned", renderDelivery(d))
}

type notesReq struct {
	Notes string `json:"notes"`
}

func (h *DeliveryHandler) Pickup(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req notesReq
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	d, err := h.deliveries.Pickup(c.Request.Context(), delivery.PickupCommand{
		DeliveryID: id, Notes: req.Notes, Actor: actor,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeData(c, http.StatusOK, "picked up", renderDelivery(d))
}

func (h *DeliveryHandler) Deliver(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req notesReq
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	d, err := h.deliveries.Deliver(c.Request.Context(), delivery.DeliverCommand{
		DeliveryID: id, Notes: req.Notes, Actor: actor,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeData(c, http.StatusOK, "delivered", renderDelivery(d))
}

type cancelDeliveryReq struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *DeliveryHandler) Cancel(c *gin.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cancelDeliveryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "reason is required")
		return
	}
	d, err := h.deliveries.Cancel(c.Request.Context(), delivery.CancelCommand{
		DeliveryID: id, Reason: req.Reason, Actor: actor,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeData(c, http.StatusOK, "delivery cancelled", renderDelivery(d))
}
