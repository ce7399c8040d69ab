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

const defaultPurchaseLimit = 10

// PurchaseStore is the subset of *repository.PurchaseRepo used here.
type PurchaseStore interface {
	Create(ctx context.Context, p *model.Purchase) error
	GetForUser(ctx context.Context, id, userID uint64) (*model.Purchase, error)
	ListByUser(ctx context.Context, userID uint64, p repository.Page, status string) ([]model.Purchase, int64, error)
	StatsForUser(ctx context.Context, userID uint64) (*model.PurchaseStats, error)
}

// CacheInvalidator drops a user's cached responses after a write.
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID uint64) error
}

type PurchaseHandler struct {
	Purchases PurchaseStore
	Events    EventPublisher
	// Cache, when set, is told about every purchase so cached stats of
	// the owner are not served after the write.
	Cache CacheInvalidator
	Log   zerolog.Logger
}

func NewPurchaseHandler(p PurchaseStore, events EventPublisher, log zerolog.Logger) *PurchaseHandler {
	return &PurchaseHandler{Purchases: p, Events: publisherOrNoop(events), Log: log}
}

type createPurchaseReq struct {
	UserID      uint64   `json:"user_id"`
	Item        string   `json:"item"`
	Price       *float64 `json:"price"`
	Status      string   `json:"status"`
	DownloadURL *string  `json:"download_url"`
	Notes       *string  `json:"notes"`
}

// My lists the caller's purchases, newest first.
//
//	GET /api/purchases/my?page=&limit=&status=
func (h *PurchaseHandler) My(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	status := strings.TrimSpace(c.QueryParam("status"))
	if status != "" && !model.ValidPurchaseStatus(status) {
		return response.Error(c, http.StatusBadRequest, "invalid status")
	}
	page := parsePage(c, defaultPurchaseLimit)

	ctx, cancel := requestContext(c)
	defer cancel()

	items, total, err := h.Purchases.ListByUser(ctx, uid, page, status)
	if err != nil {
		h.Log.Error().Err(err).Uint64("user_id", uid).Msg("list purchases")
		return response.Internal(c)
	}
	return response.OK(c, http.StatusOK, echo.Map{
		"purchases":  items,
		"pagination": newPagination(page, total),
	})
}

// Stats returns totals and the five most recent purchases.  A failure in
// any of the aggregate queries fails the whole request.
func (h *PurchaseHandler) Stats(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := h.Purchases.StatsForUser(ctx, uid)
	if err != nil {
		h.Log.Error().Err(err).Uint64("user_id", uid).Msg("purchase stats")
		return response.Internal(c)
	}
	return response.OK(c, http.StatusOK, stats)
}

// Get returns one purchase.  Purchases of other users are reported as
// not found.
func (h *PurchaseHandler) Get(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return response.Error(c, http.StatusBadRequest, "invalid purchase id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Purchases.GetForUser(ctx, id, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return response.Error(c, http.StatusNotFound, "purchase not found")
	}
	if err != nil {
		h.Log.Error().Err(err).Uint64("purchase_id", id).Msg("get purchase")
		return response.Internal(c)
	}
	return response.OK(c, http.StatusOK, p)
}

// Create records a purchase on behalf of the storefront integration.
//
//	POST /api/purchases/create  (shared secret)
func (h *PurchaseHandler) Create(c echo.Context) error {
	var req createPurchaseReq
	if err := c.Bind(&req); err != nil {
		return response.Error(c, http.StatusBadRequest, "invalid body")
	}
	req.Item = strings.TrimSpace(req.Item)
	req.Status = strings.TrimSpace(req.Status)
	switch {
	case req.UserID == 0:
		return response.Error(c, http.StatusBadRequest, "user_id is required")
	case req.Item == "":
		return response.Error(c, http.StatusBadRequest, "item is required")
	case tooLong(req.Item, maxItemChars):
		return response.Error(c, http.StatusBadRequest, "item must be at most 255 characters")
	case req.Price == nil:
		return response.Error(c, http.StatusBadRequest, "price is required")
	case *req.Price < 0:
		return response.Error(c, http.StatusBadRequest, "price must not be negative")
	case *req.Price > maxPrice:
		return response.Error(c, http.StatusBadRequest, "price is too large")
	case req.DownloadURL != nil && tooLong(*req.DownloadURL, maxURLChars):
		return response.Error(c, http.StatusBadRequest, "download_url must be at most 512 characters")
	case req.Notes != nil && len(*req.Notes) > maxTextBytes:
		return response.Error(c, http.StatusBadRequest, "notes are too long")
	case req.Status != "" && !model.ValidPurchaseStatus(req.Status):
		return response.Error(c, http.StatusBadRequest, "invalid status")
	}

	p := &model.Purchase{
		UserID:      req.UserID,
		Item:        req.Item,
		Price:       *req.Price,
		Status:      req.Status,
		DownloadURL: req.DownloadURL,
		Notes:       req.Notes,
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Purchases.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrOwnerMissing) {
			return response.Error(c, http.StatusNotFound, "user not found")
		}
		if errors.Is(err, repository.ErrInvalid) {
			return invalidValue(c)
		}
		h.Log.Error().Err(err).Uint64("user_id", req.UserID).Msg("create purchase")
		return response.Internal(c)
	}

	if h.Cache != nil {
		if err := h.Cache.InvalidateUser(ctx, p.UserID); err != nil {
			h.Log.Warn().Err(err).Uint64("user_id", p.UserID).Msg("invalidate cached stats")
		}
	}
	h.Events.Publish(ctx, queue.NewEvent(queue.PurchaseCreated, p.UserID, p.ID, fmt.Sprintf("purchase %q (%s)", p.Item, p.Status)))
	return response.Message(c, http.StatusCreated, "purchase created", p)
}
