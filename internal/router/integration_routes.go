package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/customer-portal/internal/handler"
)

// RegisterIntegration registers backend-to-backend endpoints on the /api
// group.  They are guarded by the shared secret instead of a session.
func RegisterIntegration(api *echo.Group, p *handler.PurchaseHandler, n *handler.NotificationHandler, u *handler.UserHandler, secret echo.MiddlewareFunc) {
	api.POST("/purchases/create", p.Create, secret)
	api.POST("/notifications/create", n.Create, secret)
	api.GET("/user/by-discord-id/:id", u.ByDiscordID, secret)
}
