// Package queue publishes customer activity events to RabbitMQ and consumes
// them into an append-only activity log.
package queue

import (
	"strconv"
	"time"
)

// Activity event types.
const (
	IdentityRegistered  = "identity.registered"
	PurchaseCreated     = "purchase.created"
	TicketCreated       = "ticket.created"
	NotificationCreated = "notification.created"
)

// ActivityEvent is published after a write has been committed.  It carries
// enough context for the activity log and analytics consumers without a
// database lookup.
type ActivityEvent struct {
	Type       string `json:"type"`
	UserID     uint64 `json:"user_id"`
	ResourceID uint64 `json:"resource_id"`
	Summary    string `json:"summary"`
	OccurredAt string `json:"occurred_at"` // RFC3339, UTC
}

// NewEvent stamps an event with the current time.
func NewEvent(typ string, userID, resourceID uint64, summary string) ActivityEvent {
	return ActivityEvent{
		Type:       typ,
		UserID:     userID,
		ResourceID: resourceID,
		Summary:    summary,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func (e ActivityEvent) line() string {
	return "[" + e.OccurredAt + "] " + e.Type +
		" | user_id=" + strconv.FormatUint(e.UserID, 10) +
		" | resource_id=" + strconv.FormatUint(e.ResourceID, 10) +
		" | " + strconv.Quote(e.Summary) + "\n"
}
