package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/customer-portal/internal/response"
)

// Health is the liveness probe used by load balancers.  It returns a
// plain text "ok" without touching any dependency.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ServiceInfo describes which optional features are configured.  Only
// booleans are reported; no configuration value is ever echoed.
type ServiceInfo struct {
	Name                string
	Version             string
	Env                 string
	DiscordConfigured   bool
	AutoJoinEnabled     bool
	APISecretConfigured bool
	EventsEnabled       bool
	RateLimitEnabled    bool
}

// StatusHandler serves the service description and the readiness report.
type StatusHandler struct {
	db      Pinger
	info    ServiceInfo
	started time.Time
}

func NewStatusHandler(db Pinger, info ServiceInfo) *StatusHandler {
	return &StatusHandler{db: db, info: info, started: time.Now()}
}

// Root describes the service and its enabled features.
func (h *StatusHandler) Root(c echo.Context) error {
	return response.OK(c, http.StatusOK, echo.Map{
		"name":        h.info.Name,
		"version":     h.info.Version,
		"environment": h.info.Env,
		"features": echo.Map{
			"discord_oauth":   h.info.DiscordConfigured,
			"auto_join":       h.info.AutoJoinEnabled,
			"activity_events": h.info.EventsEnabled,
			"rate_limit":      h.info.RateLimitEnabled,
		},
	})
}

// Ready reports uptime, database reachability and configuration presence.
// It answers 503 when the database cannot be reached.
func (h *StatusHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status, code, db := "ok", http.StatusOK, "up"
	if h.db == nil || h.db.PingContext(ctx) != nil {
		status, code, db = "degraded", http.StatusServiceUnavailable, "down"
	}
	return c.JSON(code, response.Envelope{Success: code == http.StatusOK, Data: echo.Map{
		"status":         status,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"database":       db,
		"discord_config": echo.Map{
			"oauth_configured":  h.info.DiscordConfigured,
			"auto_join_enabled": h.info.AutoJoinEnabled,
		},
		"api_config": echo.Map{
			"api_secret_configured": h.info.APISecretConfigured,
		},
	}})
}
