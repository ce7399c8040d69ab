package model

import "time"

// Identity represents a row of the `users` table: one local account per
// Discord user.  DiscordID is unique across all rows and ID is the foreign
// key target for purchases, tickets and notifications.
type Identity struct {
	ID            uint64    `json:"id"`            // users.id
	DiscordID     string    `json:"discord_id"`    // users.discord_id (unique, case-sensitive)
	Username      string    `json:"username"`      // users.username
	Discriminator string    `json:"discriminator"` // users.discriminator ("0" for migrated accounts)
	Email         *string   `json:"email"`         // users.email (nullable)
	Avatar        *string   `json:"avatar"`        // users.avatar, full CDN URL (nullable)
	CreatedAt     time.Time `json:"created_at"`    // users.created_at
	UpdatedAt     time.Time `json:"updated_at"`    // users.updated_at
}

// ExternalProfile is the identity returned by the provider after a
// successful OAuth exchange, already normalised for storage.
type ExternalProfile struct {
	ID            string
	Username      string
	Discriminator string
	Email         *string
	Avatar        *string
}
