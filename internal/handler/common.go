package handler // handler defines the HTTP handlers behind every route

import (
	"context"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/customer-portal/internal/middleware"
	"github.com/iliyamo/customer-portal/internal/queue"
	"github.com/iliyamo/customer-portal/internal/repository"
	"github.com/iliyamo/customer-portal/internal/response"
)

// dbTimeout bounds the store work of a single request.
const dbTimeout = 5 * time.Second

const (
	maxPageLimit = 100
	maxPage      = 1_000_000
)

// Column widths from the migrations.  VARCHAR limits count characters,
// TEXT limits count bytes.
const (
	maxTitleChars = 200
	maxItemChars  = 255
	maxURLChars   = 512
	maxTextBytes  = 65535
	maxPrice      = 99999999.99 // DECIMAL(10,2)
)

func tooLong(s string, chars int) bool {
	return utf8.RuneCountInString(s) > chars
}

// invalidValue answers a write the store rejected as not fitting its column.
func invalidValue(c echo.Context) error {
	return response.Error(c, http.StatusBadRequest, "value too long or out of range")
}

// EventPublisher receives activity events after a write is committed.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ActivityEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, queue.ActivityEvent) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

// requestContext detaches the store work from client disconnects: once
// accepted, a request runs to completion or to dbTimeout.
func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request().Context()), dbTimeout)
}

// getUserID returns the caller's local id set by the session gate; ok is
// false when the gate did not run.
func getUserID(c echo.Context) (uint64, bool) {
	return middleware.UserID(c)
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// parsePage reads ?page and ?limit.  Bad or missing values fall back to
// page 1 and defLimit; page is capped at maxPage and limit at maxPageLimit.
func parsePage(c echo.Context, defLimit int) repository.Page {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = defLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return repository.Page{Number: page, Limit: limit}
}

type pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func newPagination(p repository.Page, total int64) pagination {
	pages := int64(0)
	if p.Limit > 0 {
		pages = (total + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return pagination{Page: p.Number, Limit: p.Limit, Total: total, Pages: pages}
}

func unauthorized(c echo.Context) error {
	return response.Error(c, http.StatusUnauthorized, "authentication required")
}
