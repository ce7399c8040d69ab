package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/customer-portal/internal/model"
	"github.com/iliyamo/customer-portal/internal/queue"
	"github.com/iliyamo/customer-portal/internal/repository"
	"github.com/iliyamo/customer-portal/internal/response"
)

const defaultTicketLimit = 10

// TicketStore is the subset of *repository.TicketRepo used here.
type TicketStore interface {
	Create(ctx context.Context, t *model.SupportTicket, n *model.Notification) error
	GetForUser(ctx context.Context, id, userID uint64) (*model.SupportTicket, error)
	ListByUser(ctx context.Context, userID uint64, p repository.Page, status string) ([]model.SupportTicket, int64, error)
	Messages(ctx context.Context, ticketID uint64) ([]model.TicketMessage, error)
	AddMessage(ctx context.Context, ticketID, userID uint64, body string) (uint64, error)
}

type SupportHandler struct {
	Tickets TicketStore
	Events  EventPublisher
	Log     zerolog.Logger
}

func NewSupportHandler(t TicketStore, events EventPublisher, log zerolog.Logger) *SupportHandler {
	return &SupportHandler{Tickets: t, Events: publisherOrNoop(events), Log: log}
}

type createTicketReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type addMessageReq struct {
	Message string `json:"message"`
}

// List returns the caller's tickets, newest first.
func (h *SupportHandler) List(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	status := strings.TrimSpace(c.QueryParam("status"))
	if status != "" && !model.ValidTicketStatus(status) {
		return response.Error(c, http.StatusBadRequest, "invalid status")
	}
	page := parsePage(c, defaultTicketLimit)

	ctx, cancel := requestContext(c)
	defer cancel()

	items, total, err := h.Tickets.ListByUser(ctx, uid, page, status)
	if err != nil {
		h.Log.Error().Err(err).Uint64("user_id", uid).Msg("list tickets")
		return response.Internal(c)
	}
	return response.OK(c, http.StatusOK, echo.Map{
		"tickets":    items,
		"pagination": newPagination(page, total),
	})
}

// Create opens a ticket.  The description becomes the first message of
// the thread and the caller receives a confirmation notification; all
// three rows are written together.
func (h *SupportHandler) Create(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	var req createTicketReq
	if err := c.Bind(&req); err != nil {
		return response.Error(c, http.StatusBadRequest, "invalid body")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Priority = strings.TrimSpace(req.Priority)
	if req.Title == "" || req.Description == "" {
		return response.Error(c, http.StatusBadRequest, "title and description are required")
	}
	if tooLong(req.Title, maxTitleChars) {
		return response.Error(c, http.StatusBadRequest, "title must be at most 200 characters")
	}
	if len(req.Description) > maxTextBytes {
		return response.Error(c, http.StatusBadRequest, "description is too long")
	}
	if req.Priority == "" {
		req.Priority = model.PriorityNormal
	}
	if !model.ValidTicketPriority(req.Priority) {
		return response.Error(c, http.StatusBadRequest, "invalid priority")
	}

	t := &model.SupportTicket{
		UserID:      uid,
		Title:       req.Title,
		Description: req.Description,
		Status:      model.TicketOpen,
		Priority:    req.Priority,
	}
	n := &model.Notification{
		UserID:  uid,
		Title:   "Ticket created",
		Message: fmt.Sprintf("Your ticket \"%s\" was created successfully.", req.Title),
		Type:    model.NotificationInfo,
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Tickets.Create(ctx, t, n); err != nil {
		if errors.Is(err, repository.ErrInvalid) {
			return invalidValue(c)
		}
		h.Log.Error().Err(err).Uint64("user_id", uid).Msg("create ticket")
		return response.Internal(c)
	}

	h.Events.Publish(ctx, queue.NewEvent(queue.TicketCreated, uid, t.ID, fmt.Sprintf("ticket %q (%s)", t.Title, t.Priority)))
	return response.Message(c, http.StatusCreated, "ticket created", echo.Map{"id": t.ID})
}

// Get returns a ticket with its full thread, oldest message first.
func (h *SupportHandler) Get(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return response.Error(c, http.StatusBadRequest, "invalid ticket id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	t, err := h.Tickets.GetForUser(ctx, id, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return response.Error(c, http.StatusNotFound, "ticket not found")
	}
	if err != nil {
		h.Log.Error().Err(err).Uint64("ticket_id", id).Msg("get ticket")
		return response.Internal(c)
	}
	msgs, err := h.Tickets.Messages(ctx, id)
	if err != nil {
		h.Log.Error().Err(err).Uint64("ticket_id", id).Msg("ticket messages")
		return response.Internal(c)
	}
	if msgs == nil {
		msgs = []model.TicketMessage{}
	}
	return response.OK(c, http.StatusOK, echo.Map{"ticket": t, "messages": msgs})
}

// AddMessage appends a customer message and bumps the ticket's
// updated_at.  Tickets of other users are reported as not found.
func (h *SupportHandler) AddMessage(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return response.Error(c, http.StatusBadRequest, "invalid ticket id")
	}
	var req addMessageReq
	if err := c.Bind(&req); err != nil {
		return response.Error(c, http.StatusBadRequest, "invalid body")
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return response.Error(c, http.StatusBadRequest, "message is required")
	}
	if len(req.Message) > maxTextBytes {
		return response.Error(c, http.StatusBadRequest, "message is too long")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	msgID, err := h.Tickets.AddMessage(ctx, id, uid, req.Message)
	if errors.Is(err, repository.ErrNotFound) {
		return response.Error(c, http.StatusNotFound, "ticket not found")
	}
	if errors.Is(err, repository.ErrInvalid) {
		return invalidValue(c)
	}
	if err != nil {
		h.Log.Error().Err(err).Uint64("ticket_id", id).Msg("add ticket message")
		return response.Internal(c)
	}
	return response.Message(c, http.StatusCreated, "message sent", echo.Map{"id": msgID})
}
