// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rewear/internal/http/handlers"
	"rewear/internal/http/middleware"
	"rewear/internal/infra"
	"rewear/internal/modules/delivery"
	"rewear/internal/modules/donation"
	"rewear/internal/modules/order"
)

func NewRouter(
	verifier infra.TokenVerifier,
	orderService *order.Service,
	deliveryService *delivery.Service,
	donationService *donation.Service,
) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(verifier))

	orderHandler := handlers.NewOrderHandler(orderService)
	api.POST("/orders", orderHandler.Create)
	api.GET("/orders", orderHandler.ListMine)
	api.GET("/orders/as-seller", orderHandler.ListAsSeller)
	api.GET("/orders/:id", orderHandler.Get)
	api.PUT("/orders/:id/cancel", orderHandler.Cancel)
	api.POST("/orders/:id/confirm", orderHandler.Confirm)

	deliveryHandler := handlers.NewDeliveryHandler(deliveryService)
	api.POST("/deliveries/quote", deliveryHandler.Quote)
	api.GET("/deliveries/as-driver", deliveryHandler.ListAsDriver)
	api.GET("/deliveries/:id", deliveryHandler.Get)
	api.POST("/deliveries/:id/assign-driver", deliveryHandler.Assign)
	api.POST("/deliveries/:id/pickup", deliveryHandler.Pickup)
	api.POST("/deliveries/:id/deliver", deliveryHandler.Deliver)
	api.POST("/deliveries/:id/cancel", deliveryHandler.Cancel)

	charityHandler := handlers.NewCharityHandler(donationService)
	api.POST("/charity/accept-donation/:itemId", charityHandler.AcceptDonation)
	api.POST("/charity/mark-distributed/:orderId", charityHandler.MarkDistributed)

	return r
}
