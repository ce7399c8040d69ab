package repository

import (
	"context"
	"database/sql"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/customer-portal/internal/model"
)

const (
	purchaseColumns = "id, user_id, item, price, status, download_url, notes, purchased_at"

	qPurchaseInsert         = "INSERT INTO purchases (user_id, item, price, status, download_url, notes) VALUES (?, ?, ?, ?, ?, ?)"
	qPurchaseByID           = "SELECT " + purchaseColumns + " FROM purchases WHERE id = ?"
	qPurchaseByIDAndUser    = "SELECT " + purchaseColumns + " FROM purchases WHERE id = ? AND user_id = ?"
	qPurchaseList           = "SELECT " + purchaseColumns + " FROM purchases WHERE user_id = ? ORDER BY purchased_at DESC, id DESC LIMIT ? OFFSET ?"
	qPurchaseListByStatus   = "SELECT " + purchaseColumns + " FROM purchases WHERE user_id = ? AND status = ? ORDER BY purchased_at DESC, id DESC LIMIT ? OFFSET ?"
	qPurchaseCount          = "SELECT COUNT(*) FROM purchases WHERE user_id = ?"
	qPurchaseCountByStatus  = "SELECT COUNT(*) FROM purchases WHERE user_id = ? AND status = ?"
	qPurchaseTotalSpent     = "SELECT COALESCE(SUM(price), 0) FROM purchases WHERE user_id = ?"
	qPurchaseActiveProducts = "SELECT COUNT(*) FROM purchases WHERE user_id = ? AND status IN ('active', 'delivered')"
	qPurchaseRecent         = "SELECT " + purchaseColumns + " FROM purchases WHERE user_id = ? ORDER BY purchased_at DESC, id DESC LIMIT 5"
)

// PurchaseRepo encapsulates queries on the `purchases` table.  Every read
// used by customers is scoped by user_id in the WHERE clause.
type PurchaseRepo struct {
	db *sql.DB
}

func NewPurchaseRepo(db *sql.DB) *PurchaseRepo {
	return &PurchaseRepo{db: db}
}

// Create inserts p and reloads it so defaults (date) are populated.
// A user_id without a matching user yields ErrOwnerMissing.
func (r *PurchaseRepo) Create(ctx context.Context, p *model.Purchase) error {
	if p.Status == "" {
		p.Status = model.PurchaseDelivered
	}
	res, err := r.db.ExecContext(ctx, qPurchaseInsert,
		p.UserID, p.Item, p.Price, p.Status, nullString(p.DownloadURL), nullString(p.Notes))
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	saved, err := scanPurchase(r.db.QueryRowContext(ctx, qPurchaseByID, id))
	if err != nil {
		return err
	}
	*p = *saved
	return nil
}

// GetForUser returns the purchase only when it belongs to userID.
func (r *PurchaseRepo) GetForUser(ctx context.Context, id, userID uint64) (*model.Purchase, error) {
	p, err := scanPurchase(r.db.QueryRowContext(ctx, qPurchaseByIDAndUser, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListByUser returns one page of purchases, newest first, optionally
// filtered by exact status, plus the total number of matching rows.
func (r *PurchaseRepo) ListByUser(ctx context.Context, userID uint64, p Page, status string) ([]model.Purchase, int64, error) {
	countQ, listQ := qPurchaseCount, qPurchaseList
	args := []any{userID}
	if status != "" {
		countQ, listQ = qPurchaseCountByStatus, qPurchaseListByStatus
		args = append(args, status)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, listQ, append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// StatsForUser runs the four aggregate queries concurrently.  Any failing
// sub-query fails the whole call.
func (r *PurchaseRepo) StatsForUser(ctx context.Context, userID uint64) (*model.PurchaseStats, error) {
	var st model.PurchaseStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.db.QueryRowContext(gctx, qPurchaseCount, userID).Scan(&st.TotalPurchases)
	})
	g.Go(func() error {
		return r.db.QueryRowContext(gctx, qPurchaseTotalSpent, userID).Scan(&st.TotalSpent)
	})
	g.Go(func() error {
		return r.db.QueryRowContext(gctx, qPurchaseActiveProducts, userID).Scan(&st.ActiveProducts)
	})
	g.Go(func() error {
		recent, err := r.query(gctx, qPurchaseRecent, userID)
		st.RecentPurchases = recent
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *PurchaseRepo) query(ctx context.Context, q string, args ...any) ([]model.Purchase, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanPurchase(s rowScanner) (*model.Purchase, error) {
	var (
		p     model.Purchase
		url   sql.NullString
		notes sql.NullString
	)
	if err := s.Scan(&p.ID, &p.UserID, &p.Item, &p.Price, &p.Status, &url, &notes, &p.Date); err != nil {
		return nil, err
	}
	p.DownloadURL = stringPtr(url)
	p.Notes = stringPtr(notes)
	return &p, nil
}
