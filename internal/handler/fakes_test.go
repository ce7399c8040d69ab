package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/customer-portal/internal/model"
	"github.com/iliyamo/customer-portal/internal/queue"
	"github.com/iliyamo/customer-portal/internal/repository"
	"github.com/iliyamo/customer-portal/internal/response"
)

var errStore = errors.New("store unavailable")

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// call runs h against a request carrying an optional caller id and path
// params given as name, value pairs.
func call(t *testing.T, h echo.HandlerFunc, method, target, body string, userID uint64, params ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != 0 {
		c.Set("user_id", userID)
	}
	if len(params) > 0 {
		var names, values []string
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	require.NoError(t, h(c))

	var env map[string]any
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func dataOf(t *testing.T, env map[string]any) map[string]any {
	t.Helper()
	d, ok := env["data"].(map[string]any)
	require.True(t, ok, "envelope has no object data: %v", env)
	return d
}

func envelope(t *testing.T, rec *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func paginate[T any](items []T, p repository.Page) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ActivityEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ActivityEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeIdentities struct {
	rows map[uint64]*model.Identity
	err  error
}

func (f *fakeIdentities) GetByID(_ context.Context, id uint64) (*model.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	if row, ok := f.rows[id]; ok {
		return row, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeIdentities) GetByDiscordID(_ context.Context, discordID string) (*model.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, row := range f.rows {
		if row.DiscordID == discordID {
			return row, nil
		}
	}
	return nil, repository.ErrNotFound
}

// fakePurchases keeps rows in insertion order; later rows are newer.
type fakePurchases struct {
	rows      []model.Purchase
	users     map[uint64]bool
	statsErr  error
	createErr error
}

func (f *fakePurchases) Create(_ context.Context, p *model.Purchase) error {
	if f.createErr != nil {
		return f.createErr
	}
	if !f.users[p.UserID] {
		return repository.ErrOwnerMissing
	}
	if p.Status == "" {
		p.Status = model.PurchaseDelivered
	}
	p.ID = uint64(len(f.rows) + 1)
	p.Date = epoch.Add(time.Duration(p.ID) * time.Minute)
	f.rows = append(f.rows, *p)
	return nil
}

func (f *fakePurchases) GetForUser(_ context.Context, id, userID uint64) (*model.Purchase, error) {
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].UserID == userID {
			return &f.rows[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakePurchases) ListByUser(_ context.Context, userID uint64, p repository.Page, status string) ([]model.Purchase, int64, error) {
	var mine []model.Purchase
	for i := len(f.rows) - 1; i >= 0; i-- {
		r := f.rows[i]
		if r.UserID == userID && (status == "" || r.Status == status) {
			mine = append(mine, r)
		}
	}
	return paginate(mine, p), int64(len(mine)), nil
}

func (f *fakePurchases) StatsForUser(ctx context.Context, userID uint64) (*model.PurchaseStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	all, total, _ := f.ListByUser(ctx, userID, repository.Page{Number: 1, Limit: 1000}, "")
	st := &model.PurchaseStats{TotalPurchases: total, RecentPurchases: paginate(all, repository.Page{Number: 1, Limit: 5})}
	for _, p := range all {
		st.TotalSpent += p.Price
		if p.Status == model.PurchaseActive || p.Status == model.PurchaseDelivered {
			st.ActiveProducts++
		}
	}
	return st, nil
}

type fakeNotifications struct {
	mu    sync.Mutex
	rows  []model.Notification
	users map[uint64]bool
}

func (f *fakeNotifications) Create(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.users != nil && !f.users[n.UserID] {
		return repository.ErrOwnerMissing
	}
	n.ID = uint64(len(f.rows) + 1)
	n.CreatedAt = epoch.Add(time.Duration(n.ID) * time.Minute)
	f.rows = append(f.rows, *n)
	return nil
}

func (f *fakeNotifications) ListByUser(_ context.Context, userID uint64, p repository.Page, unreadOnly bool) ([]model.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var mine []model.Notification
	for i := len(f.rows) - 1; i >= 0; i-- {
		r := f.rows[i]
		if r.UserID == userID && (!unreadOnly || !r.Read) {
			mine = append(mine, r)
		}
	}
	return paginate(mine, p), int64(len(mine)), nil
}

func (f *fakeNotifications) CountUnread(_ context.Context, userID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.UserID == userID && !r.Read {
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].UserID == userID {
			f.rows[i].Read = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, userID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.rows {
		if f.rows[i].UserID == userID && !f.rows[i].Read {
			f.rows[i].Read = true
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) Delete(_ context.Context, id, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].UserID == userID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type recordingInvalidator struct {
	users []uint64
	err   error
}

func (r *recordingInvalidator) InvalidateUser(_ context.Context, userID uint64) error {
	r.users = append(r.users, userID)
	return r.err
}

// fakeTickets writes the ticket, its seed message and the notification
// together, like the SQL repository's transaction.
type fakeTickets struct {
	tickets       []model.SupportTicket
	messages      []model.TicketMessage
	notifications *fakeNotifications
	createErr     error
	clock         time.Time
}

func (f *fakeTickets) tick() time.Time {
	if f.clock.IsZero() {
		f.clock = epoch
	}
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeTickets) Create(ctx context.Context, t *model.SupportTicket, n *model.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	now := f.tick()
	t.ID = uint64(len(f.tickets) + 1)
	t.CreatedAt, t.UpdatedAt = now, now
	f.tickets = append(f.tickets, *t)
	uid := t.UserID
	f.messages = append(f.messages, model.TicketMessage{
		ID: uint64(len(f.messages) + 1), TicketID: t.ID, UserID: &uid, Message: t.Description, CreatedAt: now,
	})
	return f.notifications.Create(ctx, n)
}

func (f *fakeTickets) GetForUser(_ context.Context, id, userID uint64) (*model.SupportTicket, error) {
	for i := range f.tickets {
		if f.tickets[i].ID == id && f.tickets[i].UserID == userID {
			t := f.tickets[i]
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTickets) ListByUser(_ context.Context, userID uint64, p repository.Page, status string) ([]model.SupportTicket, int64, error) {
	var mine []model.SupportTicket
	for i := len(f.tickets) - 1; i >= 0; i-- {
		t := f.tickets[i]
		if t.UserID == userID && (status == "" || t.Status == status) {
			mine = append(mine, t)
		}
	}
	return paginate(mine, p), int64(len(mine)), nil
}

func (f *fakeTickets) Messages(_ context.Context, ticketID uint64) ([]model.TicketMessage, error) {
	var out []model.TicketMessage
	for _, m := range f.messages {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeTickets) AddMessage(ctx context.Context, ticketID, userID uint64, body string) (uint64, error) {
	if _, err := f.GetForUser(ctx, ticketID, userID); err != nil {
		return 0, err
	}
	now := f.tick()
	uid := userID
	id := uint64(len(f.messages) + 1)
	f.messages = append(f.messages, model.TicketMessage{ID: id, TicketID: ticketID, UserID: &uid, Message: body, CreatedAt: now})
	for i := range f.tickets {
		if f.tickets[i].ID == ticketID {
			f.tickets[i].UpdatedAt = now
		}
	}
	return id, nil
}
