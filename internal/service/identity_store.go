package service

import (
	"context"
	"database/sql"

	"github.com/iliyamo/customer-portal/internal/model"
	"github.com/iliyamo/customer-portal/internal/repository"
)

// IdentityStore runs identity writes atomically.
type IdentityStore interface {
	WithinTx(ctx context.Context, fn func(IdentityTx) error) error
}

// IdentityTx is the set of queries the resolver issues inside one
// transaction.  GetByDiscordID returns repository.ErrNotFound for unknown
// ids and Create returns repository.ErrDuplicate when the id already exists.
type IdentityTx interface {
	GetByDiscordID(ctx context.Context, discordID string) (*model.Identity, error)
	Create(ctx context.Context, p model.ExternalProfile) (uint64, error)
	UpdateProfile(ctx context.Context, id uint64, p model.ExternalProfile) error
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// NewSQLIdentityStore adapts the MySQL repositories to IdentityStore.
func NewSQLIdentityStore(db *sql.DB) IdentityStore {
	return sqlIdentityStore{db: db}
}

type sqlIdentityStore struct {
	db *sql.DB
}

func (s sqlIdentityStore) WithinTx(ctx context.Context, fn func(IdentityTx) error) error {
	return repository.InTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(sqlIdentityTx{
			IdentityRepo:  repository.NewIdentityRepo(s.db).WithTx(tx),
			notifications: repository.NewNotificationRepo(s.db).WithTx(tx),
		})
	})
}

type sqlIdentityTx struct {
	*repository.IdentityRepo
	notifications *repository.NotificationRepo
}

func (t sqlIdentityTx) CreateNotification(ctx context.Context, n *model.Notification) error {
	return t.notifications.Create(ctx, n)
}
