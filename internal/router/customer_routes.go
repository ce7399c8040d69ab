package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/customer-portal/internal/handler"
)

// CustomerHandlers groups the handlers behind session-protected /api routes.
type CustomerHandlers struct {
	Purchases     *handler.PurchaseHandler
	Support       *handler.SupportHandler
	Notifications *handler.NotificationHandler
}

// RegisterCustomer registers customer-scoped endpoints on the /api group.
// Every route requires a valid session; the stats route is additionally
// served from the per-user response cache.
func RegisterCustomer(api *echo.Group, h CustomerHandlers, session, statsCache echo.MiddlewareFunc) {
	// ---- Purchases ----
	api.GET("/purchases/my", h.Purchases.My, session)
	api.GET("/purchases/stats", h.Purchases.Stats, session, statsCache)
	api.GET("/purchases/:id", h.Purchases.Get, session)

	// ---- Support tickets ----
	api.GET("/support/tickets", h.Support.List, session)
	api.POST("/support/tickets", h.Support.Create, session)
	api.GET("/support/tickets/:id", h.Support.Get, session)
	api.POST("/support/tickets/:id/messages", h.Support.AddMessage, session)

	// ---- Notifications ----
	api.GET("/notifications", h.Notifications.List, session)
	api.PUT("/notifications/read-all", h.Notifications.MarkAllRead, session)
	api.PUT("/notifications/:id/read", h.Notifications.MarkRead, session)
	api.DELETE("/notifications/:id", h.Notifications.Delete, session)
}
