// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Logins counts completed OAuth callbacks by outcome ("created",
	// "updated" or a login error code).
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "customer_portal",
		Name:      "logins_total",
		Help:      "OAuth callbacks by outcome.",
	}, []string{"outcome"})

	// GuildJoins counts auto-join attempts by result.
	GuildJoins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "customer_portal",
		Name:      "guild_joins_total",
		Help:      "Discord guild auto-join attempts by result.",
	}, []string{"result"})

	// IntegrationAuth counts shared-secret gate decisions.
	IntegrationAuth = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "customer_portal",
		Name:      "integration_auth_total",
		Help:      "Shared-secret gate decisions.",
	}, []string{"result"})

	// EventsPublished counts activity events handed to RabbitMQ.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "customer_portal",
		Name:      "activity_events_total",
		Help:      "Activity events by type and publish result.",
	}, []string{"type", "result"})

	// RateLimit counts token bucket decisions on /api.
	RateLimit = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "customer_portal",
		Name:      "rate_limit_decisions_total",
		Help:      "Rate limiter decisions: allowed, limited or error (fail-open).",
	}, []string{"result"})

	// CacheLookups counts response cache lookups.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "customer_portal",
		Name:      "response_cache_lookups_total",
		Help:      "Response cache lookups by result.",
	}, []string{"result"})
)
