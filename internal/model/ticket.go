package model

import "time"

// Ticket statuses and priorities.
const (
	TicketOpen       = "open"
	TicketInProgress = "in-progress"
	TicketClosed     = "closed"

	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// SupportTicket mirrors the `support_tickets` table.
type SupportTicket struct {
	ID          uint64    `json:"id"`
	UserID      uint64    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TicketMessage mirrors the `ticket_messages` table.  UserID becomes nil
// when the author's account is removed; Username and Avatar are joined from
// `users` on read and are nil in that case too.
type TicketMessage struct {
	ID        uint64    `json:"id"`
	TicketID  uint64    `json:"ticket_id"`
	UserID    *uint64   `json:"user_id"`
	Message   string    `json:"message"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	Username  *string   `json:"username"`
	Avatar    *string   `json:"avatar"`
}

func ValidTicketStatus(s string) bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketClosed:
		return true
	}
	return false
}

func ValidTicketPriority(s string) bool {
	switch s {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
