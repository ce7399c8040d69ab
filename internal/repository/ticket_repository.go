package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/customer-portal/internal/model"
)

const (
	ticketColumns = "id, user_id, title, description, status, priority, created_at, updated_at"

	qTicketInsert         = "INSERT INTO support_tickets (user_id, title, description, priority) VALUES (?, ?, ?, ?)"
	qTicketByIDAndUser    = "SELECT " + ticketColumns + " FROM support_tickets WHERE id = ? AND user_id = ?"
	qTicketLockForUser    = "SELECT id FROM support_tickets WHERE id = ? AND user_id = ? FOR UPDATE"
	qTicketTouch          = "UPDATE support_tickets SET updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	qTicketList           = "SELECT " + ticketColumns + " FROM support_tickets WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	qTicketListByStatus   = "SELECT " + ticketColumns + " FROM support_tickets WHERE user_id = ? AND status = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	qTicketCount          = "SELECT COUNT(*) FROM support_tickets WHERE user_id = ?"
	qTicketCountByStatus  = "SELECT COUNT(*) FROM support_tickets WHERE user_id = ? AND status = ?"
	qTicketMessageInsert  = "INSERT INTO ticket_messages (ticket_id, user_id, message, is_admin) VALUES (?, ?, ?, ?)"
	qTicketMessagesByTick = "SELECT m.id, m.ticket_id, m.user_id, m.message, m.is_admin, m.created_at, u.username, u.avatar FROM ticket_messages m LEFT JOIN users u ON u.id = m.user_id WHERE m.ticket_id = ? ORDER BY m.created_at ASC, m.id ASC"
)

// TicketRepo encapsulates queries on `support_tickets` and
// `ticket_messages`.  Multi-statement writes run in one transaction.
type TicketRepo struct {
	db *sql.DB
}

func NewTicketRepo(db *sql.DB) *TicketRepo {
	return &TicketRepo{db: db}
}

// Create inserts the ticket, its seed message (the description, authored by
// the ticket owner) and the confirmation notification atomically.  On
// success t.ID, t.Status and n.ID are populated.
func (r *TicketRepo) Create(ctx context.Context, t *model.SupportTicket, n *model.Notification) error {
	if t.Priority == "" {
		t.Priority = model.PriorityNormal
	}
	return InTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, qTicketInsert, t.UserID, t.Title, t.Description, t.Priority)
		if err != nil {
			return translate(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		t.ID = uint64(id)
		t.Status = model.TicketOpen

		if _, err := tx.ExecContext(ctx, qTicketMessageInsert, t.ID, t.UserID, t.Description, false); err != nil {
			return translate(err)
		}
		if n == nil {
			return nil
		}
		n.UserID = t.UserID
		return NewNotificationRepo(r.db).WithTx(tx).Create(ctx, n)
	})
}

// GetForUser returns the ticket only when it belongs to userID.
func (r *TicketRepo) GetForUser(ctx context.Context, id, userID uint64) (*model.SupportTicket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, qTicketByIDAndUser, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ListByUser returns one page of the user's tickets, newest first,
// optionally filtered by exact status, plus the total number of matches.
func (r *TicketRepo) ListByUser(ctx context.Context, userID uint64, p Page, status string) ([]model.SupportTicket, int64, error) {
	countQ, listQ := qTicketCount, qTicketList
	args := []any{userID}
	if status != "" {
		countQ, listQ = qTicketCountByStatus, qTicketListByStatus
		args = append(args, status)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, listQ, append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.SupportTicket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Messages returns the ticket's messages oldest first, with the author's
// username and avatar when the author still exists.  Callers must check
// ticket ownership first.
func (r *TicketRepo) Messages(ctx context.Context, ticketID uint64) ([]model.TicketMessage, error) {
	rows, err := r.db.QueryContext(ctx, qTicketMessagesByTick, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.TicketMessage{}
	for rows.Next() {
		var (
			m        model.TicketMessage
			userID   sql.NullInt64
			username sql.NullString
			avatar   sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.TicketID, &userID, &m.Message, &m.IsAdmin, &m.CreatedAt, &username, &avatar); err != nil {
			return nil, err
		}
		if userID.Valid {
			uid := uint64(userID.Int64)
			m.UserID = &uid
		}
		m.Username = stringPtr(username)
		m.Avatar = stringPtr(avatar)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AddMessage appends a customer message to a ticket owned by userID and
// bumps the ticket's updated_at in the same transaction.  A missing or
// foreign ticket yields ErrNotFound and nothing is written.
func (r *TicketRepo) AddMessage(ctx context.Context, ticketID, userID uint64, body string) (uint64, error) {
	var msgID uint64
	err := InTx(ctx, r.db, func(tx *sql.Tx) error {
		var id uint64
		if err := tx.QueryRowContext(ctx, qTicketLockForUser, ticketID, userID).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		res, err := tx.ExecContext(ctx, qTicketMessageInsert, ticketID, userID, body, false)
		if err != nil {
			return translate(err)
		}
		last, err := res.LastInsertId()
		if err != nil {
			return err
		}
		msgID = uint64(last)
		_, err = tx.ExecContext(ctx, qTicketTouch, ticketID)
		return err
	})
	return msgID, err
}

func scanTicket(s rowScanner) (*model.SupportTicket, error) {
	var t model.SupportTicket
	if err := s.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
