package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/customer-portal/internal/model"
)

const (
	identityColumns = "id, discord_id, username, discriminator, email, avatar, created_at, updated_at"

	qIdentityByID        = "SELECT " + identityColumns + " FROM users WHERE id = ?"
	qIdentityByDiscordID = "SELECT " + identityColumns + " FROM users WHERE discord_id = ?"
	qIdentityInsert      = "INSERT INTO users (discord_id, username, discriminator, email, avatar) VALUES (?, ?, ?, ?, ?)"
	qIdentityUpdate      = "UPDATE users SET username = ?, discriminator = ?, email = ?, avatar = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
)

// IdentityRepo encapsulates queries on the `users` table.
type IdentityRepo struct {
	q Querier
}

// NewIdentityRepo constructs an IdentityRepo bound to the pool.
func NewIdentityRepo(db *sql.DB) *IdentityRepo {
	return &IdentityRepo{q: db}
}

// WithTx returns a copy of the repo that runs its queries on tx.
func (r *IdentityRepo) WithTx(tx *sql.Tx) *IdentityRepo {
	return &IdentityRepo{q: tx}
}

// GetByID returns the identity with the given local id or ErrNotFound.
func (r *IdentityRepo) GetByID(ctx context.Context, id uint64) (*model.Identity, error) {
	return r.get(ctx, qIdentityByID, id)
}

// GetByDiscordID looks an identity up by its exact Discord id.  The column
// uses a binary collation, so the match is case-sensitive.
func (r *IdentityRepo) GetByDiscordID(ctx context.Context, discordID string) (*model.Identity, error) {
	return r.get(ctx, qIdentityByDiscordID, discordID)
}

func (r *IdentityRepo) get(ctx context.Context, q string, arg any) (*model.Identity, error) {
	var (
		u      model.Identity
		email  sql.NullString
		avatar sql.NullString
	)
	err := r.q.QueryRowContext(ctx, q, arg).Scan(
		&u.ID, &u.DiscordID, &u.Username, &u.Discriminator, &email, &avatar, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Email = stringPtr(email)
	u.Avatar = stringPtr(avatar)
	return &u, nil
}

// Create inserts a new identity and returns its id.  A concurrent insert of
// the same Discord id surfaces as ErrDuplicate.
func (r *IdentityRepo) Create(ctx context.Context, p model.ExternalProfile) (uint64, error) {
	res, err := r.q.ExecContext(ctx, qIdentityInsert,
		p.ID, p.Username, p.Discriminator, nullString(p.Email), nullString(p.Avatar))
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// UpdateProfile overwrites the provider-owned fields of an identity.
func (r *IdentityRepo) UpdateProfile(ctx context.Context, id uint64, p model.ExternalProfile) error {
	res, err := r.q.ExecContext(ctx, qIdentityUpdate,
		p.Username, p.Discriminator, nullString(p.Email), nullString(p.Avatar), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
