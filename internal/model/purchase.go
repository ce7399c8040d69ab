package model

import "time"

// Purchase statuses.  Any of them may be set at any time; there is no
// enforced transition order.
const (
	PurchaseActive    = "active"
	PurchaseDelivered = "delivered"
	PurchasePending   = "pending"
	PurchaseCancelled = "cancelled"
)

// Purchase mirrors the `purchases` table.
type Purchase struct {
	ID          uint64    `json:"id"`
	UserID      uint64    `json:"user_id"`
	Item        string    `json:"item"`
	Price       float64   `json:"price"` // DECIMAL(10,2)
	Status      string    `json:"status"`
	DownloadURL *string   `json:"download_url"`
	Notes       *string   `json:"notes"`
	Date        time.Time `json:"date"` // purchases.purchased_at
}

// PurchaseStats aggregates a user's purchase history.
type PurchaseStats struct {
	TotalPurchases  int64      `json:"totalPurchases"`
	TotalSpent      float64    `json:"totalSpent"`
	ActiveProducts  int64      `json:"activeProducts"` // status active or delivered
	RecentPurchases []Purchase `json:"recentPurchases"`
}

// ValidPurchaseStatus reports whether s is one of the purchase statuses.
func ValidPurchaseStatus(s string) bool {
	switch s {
	case PurchaseActive, PurchaseDelivered, PurchasePending, PurchaseCancelled:
		return true
	}
	return false
}
