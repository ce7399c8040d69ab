package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/customer-portal/internal/model"
)

const (
	notificationColumns = "id, user_id, title, message, type, is_read, created_at"

	qNotificationInsert      = "INSERT INTO notifications (user_id, title, message, type, created_at) VALUES (?, ?, ?, ?, ?)"
	qNotificationList        = "SELECT " + notificationColumns + " FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	qNotificationListUnread  = "SELECT " + notificationColumns + " FROM notifications WHERE user_id = ? AND is_read = FALSE ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	qNotificationCount       = "SELECT COUNT(*) FROM notifications WHERE user_id = ?"
	qNotificationCountUnread = "SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE"
	qNotificationMarkRead    = "UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?"
	qNotificationMarkAllRead = "UPDATE notifications SET is_read = TRUE WHERE user_id = ? AND is_read = FALSE"
	qNotificationDelete      = "DELETE FROM notifications WHERE id = ? AND user_id = ?"
)

// NotificationRepo encapsulates queries on the `notifications` table.
type NotificationRepo struct {
	q Querier
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{q: db}
}

// WithTx returns a copy of the repo that runs its queries on tx.
func (r *NotificationRepo) WithTx(tx *sql.Tx) *NotificationRepo {
	return &NotificationRepo{q: tx}
}

// Create inserts n and fills in its id.  The row starts unread.  created_at
// is written explicitly, truncated to the column's second precision, so n
// matches what a later read returns.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	if n.Type == "" {
		n.Type = model.NotificationInfo
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	res, err := r.q.ExecContext(ctx, qNotificationInsert, n.UserID, n.Title, n.Message, n.Type, n.CreatedAt)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	n.Read = false
	return nil
}

// ListByUser returns one page of the user's notifications, newest first,
// and the total number of rows matching the filter.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID uint64, p Page, unreadOnly bool) ([]model.Notification, int64, error) {
	countQ, listQ := qNotificationCount, qNotificationList
	if unreadOnly {
		countQ, listQ = qNotificationCountUnread, qNotificationListUnread
	}

	var total int64
	if err := r.q.QueryRowContext(ctx, countQ, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.q.QueryContext(ctx, listQ, userID, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Notification, 0, p.Limit)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Read, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CountUnread returns how many of the user's notifications are unread.
func (r *NotificationRepo) CountUnread(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.q.QueryRowContext(ctx, qNotificationCountUnread, userID).Scan(&n)
	return n, err
}

// MarkRead flags one notification as read.  The DSN sets clientFoundRows,
// so an already-read row still counts as affected and the call is
// idempotent; a missing or foreign row yields ErrNotFound.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID uint64) error {
	res, err := r.q.ExecContext(ctx, qNotificationMarkRead, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead flags every unread notification of the user and returns how
// many rows changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.q.ExecContext(ctx, qNotificationMarkAllRead, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes one notification owned by the user.
func (r *NotificationRepo) Delete(ctx context.Context, id, userID uint64) error {
	res, err := r.q.ExecContext(ctx, qNotificationDelete, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
