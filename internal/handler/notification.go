package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/customer-portal/internal/model"
	"github.com/iliyamo/customer-portal/internal/queue"
	"github.com/iliyamo/customer-portal/internal/repository"
	"github.com/iliyamo/customer-portal/internal/response"
)

const defaultNotificationLimit = 20

// NotificationStore is the subset of *repository.NotificationRepo used here.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByUser(ctx context.Context, userID uint64, p repository.Page, unreadOnly bool) ([]model.Notification, int64, error)
	CountUnread(ctx context.Context, userID uint64) (int64, error)
	MarkRead(ctx context.Context, id, userID uint64) error
	MarkAllRead(ctx context.Context, userID uint64) (int64, error)
	Delete(ctx context.Context, id, userID uint64) error
}

type NotificationHandler struct {
	Notifications NotificationStore
	Events        EventPublisher
	Log           zerolog.Logger
}

func NewNotificationHandler(n NotificationStore, events EventPublisher, log zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{Notifications: n, Events: publisherOrNoop(events), Log: log}
}

type createNotificationReq struct {
	UserID  uint64 `json:"user_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// List returns a page of notifications plus the caller's total unread
// count, which ignores the unread_only filter.
//
//	GET /api/notifications?page=&limit=&unread_only=true
func (h *NotificationHandler) List(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	page := parsePage(c, defaultNotificationLimit)
	unreadOnly := c.QueryParam("unread_only") == "true"

	ctx, cancel := requestContext(c)
	defer cancel()

	items, total, err := h.Notifications.ListByUser(ctx, uid, page, unreadOnly)
	if err != nil {
		h.Log.Error().Err(err).Uint64("user_id", uid).Msg("list notifications")
		return response.Internal(c)
	}
	unread, err := h.Notifications.CountUnread(ctx, uid)
	if err != nil {
		h.Log.Error().Err(err).Uint64("user_id", uid).Msg("count unread notifications")
		return response.Internal(c)
	}
	return response.OK(c, http.StatusOK, echo.Map{
		"notifications": items,
		"unread_count":  unread,
		"pagination":    newPagination(page, total),
	})
}

// MarkRead is idempotent: marking an already read notification succeeds.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return response.Error(c, http.StatusBadRequest, "invalid notification id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	err := h.Notifications.MarkRead(ctx, id, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return response.Error(c, http.StatusNotFound, "notification not found")
	}
	if err != nil {
		h.Log.Error().Err(err).Uint64("notification_id", id).Msg("mark notification read")
		return response.Internal(c)
	}
	return response.Message(c, http.StatusOK, "notification marked as read", nil)
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := h.Notifications.MarkAllRead(ctx, uid)
	if err != nil {
		h.Log.Error().Err(err).Uint64("user_id", uid).Msg("mark all notifications read")
		return response.Internal(c)
	}
	return response.Message(c, http.StatusOK, "all notifications marked as read", echo.Map{"count": n})
}

func (h *NotificationHandler) Delete(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return response.Error(c, http.StatusBadRequest, "invalid notification id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	err := h.Notifications.Delete(ctx, id, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return response.Error(c, http.StatusNotFound, "notification not found")
	}
	if err != nil {
		h.Log.Error().Err(err).Uint64("notification_id", id).Msg("delete notification")
		return response.Internal(c)
	}
	return response.Message(c, http.StatusOK, "notification deleted", nil)
}

// Create sends a notification on behalf of an integration.
//
//	POST /api/notifications/create  (shared secret)
func (h *NotificationHandler) Create(c echo.Context) error {
	var req createNotificationReq
	if err := c.Bind(&req); err != nil {
		return response.Error(c, http.StatusBadRequest, "invalid body")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Message = strings.TrimSpace(req.Message)
	req.Type = strings.TrimSpace(req.Type)
	if req.UserID == 0 || req.Title == "" || req.Message == "" {
		return response.Error(c, http.StatusBadRequest, "user_id, title and message are required")
	}
	if tooLong(req.Title, maxTitleChars) {
		return response.Error(c, http.StatusBadRequest, "title must be at most 200 characters")
	}
	if len(req.Message) > maxTextBytes {
		return response.Error(c, http.StatusBadRequest, "message is too long")
	}
	if req.Type == "" {
		req.Type = model.NotificationInfo
	}
	if !model.ValidNotificationType(req.Type) {
		return response.Error(c, http.StatusBadRequest, "invalid type")
	}

	n := &model.Notification{UserID: req.UserID, Title: req.Title, Message: req.Message, Type: req.Type}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Notifications.Create(ctx, n); err != nil {
		if errors.Is(err, repository.ErrOwnerMissing) {
			return response.Error(c, http.StatusNotFound, "user not found")
		}
		if errors.Is(err, repository.ErrInvalid) {
			return invalidValue(c)
		}
		h.Log.Error().Err(err).Uint64("user_id", req.UserID).Msg("create notification")
		return response.Internal(c)
	}

	h.Events.Publish(ctx, queue.NewEvent(queue.NotificationCreated, n.UserID, n.ID, n.Title))
	return response.Message(c, http.StatusCreated, "notification created", n)
}
