// Package service holds the login flow: it turns an OAuth callback into a
// local identity and a signed session token.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iliyamo/customer-portal/internal/model"
	"github.com/iliyamo/customer-portal/internal/queue"
	"github.com/iliyamo/customer-portal/internal/repository"
	"github.com/iliyamo/customer-portal/internal/utils"
)

// maxUpsertAttempts bounds the retry after losing an insert race: the
// second attempt sees the winner's row and takes the update path.
const maxUpsertAttempts = 2

// SessionSigner issues session tokens.
type SessionSigner interface {
	Sign(userID uint64, discordID, username string) (utils.SessionToken, error)
}

// EventPublisher receives activity events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ActivityEvent)
}

// Welcome builds the notification sent to newly registered users.
type Welcome struct {
	StoreName string
	InviteURL string
}

// Notification returns the welcome message for userID.  The body differs
// depending on whether the user was added to the Discord server.
func (w Welcome) Notification(userID uint64, joined bool) *model.Notification {
	msg := fmt.Sprintf("Your account was created successfully! Join our Discord server at %s to stay up to date.", w.InviteURL)
	if joined {
		msg = "Your account was created successfully! You were automatically added to our Discord server."
	}
	return &model.Notification{
		UserID:  userID,
		Title:   fmt.Sprintf("Welcome to %s!", w.StoreName),
		Message: msg,
		Type:    model.NotificationSuccess,
	}
}

// Resolution is the outcome of a successful login.
type Resolution struct {
	UserID    uint64
	DiscordID string
	Username  string
	Created   bool
	Session   utils.SessionToken
}

// IdentityResolver maps a Discord profile to exactly one local identity and
// signs a session for it.
type IdentityResolver struct {
	store   IdentityStore
	signer  SessionSigner
	welcome Welcome
	events  EventPublisher
	log     zerolog.Logger
}

func NewIdentityResolver(store IdentityStore, signer SessionSigner, welcome Welcome, events EventPublisher, log zerolog.Logger) *IdentityResolver {
	return &IdentityResolver{store: store, signer: signer, welcome: welcome, events: events, log: log}
}

// Resolve creates or refreshes the identity for p and issues a session.
// A new identity and its welcome notification are written in one
// transaction.  Losing a concurrent insert race is retried as an update.
func (r *IdentityResolver) Resolve(ctx context.Context, p model.ExternalProfile, joined bool) (*Resolution, error) {
	var (
		id      uint64
		created bool
		err     error
	)
	for attempt := 1; ; attempt++ {
		id, created, err = r.upsert(ctx, p, joined)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, loginErr(KindStoreUnavailable, err)
		}
		if attempt >= maxUpsertAttempts {
			return nil, loginErr(KindIdentityConflict, err)
		}
		r.log.Info().Str("discord_id", p.ID).Msg("identity created concurrently, retrying as update")
	}

	tok, err := r.signer.Sign(id, p.ID, p.Username)
	if err != nil {
		return nil, loginErr(KindSigningFailed, err)
	}

	if created {
		r.log.Info().Uint64("user_id", id).Str("discord_id", p.ID).Bool("joined_guild", joined).Msg("identity registered")
		if r.events != nil {
			r.events.Publish(ctx, queue.NewEvent(queue.IdentityRegistered, id, id, p.Username))
		}
	}
	return &Resolution{UserID: id, DiscordID: p.ID, Username: p.Username, Created: created, Session: tok}, nil
}

func (r *IdentityResolver) upsert(ctx context.Context, p model.ExternalProfile, joined bool) (id uint64, created bool, err error) {
	err = r.store.WithinTx(ctx, func(tx IdentityTx) error {
		existing, err := tx.GetByDiscordID(ctx, p.ID)
		switch {
		case err == nil:
			id = existing.ID
			return tx.UpdateProfile(ctx, existing.ID, p)
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		newID, err := tx.Create(ctx, p)
		if err != nil {
			return err
		}
		id, created = newID, true
		return tx.CreateNotification(ctx, r.welcome.Notification(newID, joined))
	})
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}
