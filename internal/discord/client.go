// Package discord talks to the Discord API on behalf of the login flow:
// OAuth2 code exchange, profile lookup and best-effort guild auto-join.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/iliyamo/customer-portal/internal/metrics"
	"github.com/iliyamo/customer-portal/internal/model"
)

const (
	AuthURL  = "https://discord.com/api/oauth2/authorize"
	TokenURL = "https://discord.com/api/oauth2/token"

	joinTimeout = 10 * time.Second
)

// Scopes requested on the consent screen.  guilds.join is what lets the bot
// add the user to the community guild.
var Scopes = []string{"identify", "email", "guilds.join"}

// ErrProvider wraps every failure reported by Discord or the network.
var ErrProvider = errors.New("discord provider error")

// Config holds the application and bot credentials.  TokenURL and AuthURL
// default to Discord's endpoints when empty.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	BotToken     string
	GuildID      string
	AuthURL      string
	TokenURL     string
}

// Client wraps the OAuth2 config and the REST sessions used during login.
type Client struct {
	oauth    *oauth2.Config
	botToken string
	guildID  string
	http     *http.Client
	log      zerolog.Logger
}

// New builds a Client.  A nil httpClient uses a client with a 15s timeout.
func New(cfg Config, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	authURL, tokenURL := cfg.AuthURL, cfg.TokenURL
	if authURL == "" {
		authURL = AuthURL
	}
	if tokenURL == "" {
		tokenURL = TokenURL
	}
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		botToken: cfg.BotToken,
		guildID:  cfg.GuildID,
		http:     httpClient,
		log:      log,
	}
}

// AutoJoinEnabled reports whether bot credentials are configured.
func (c *Client) AutoJoinEnabled() bool {
	return c.botToken != "" && c.guildID != ""
}

// AuthCodeURL returns the consent screen URL carrying state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for a user access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: code exchange: %v", ErrProvider, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: code exchange returned no access token", ErrProvider)
	}
	return tok.AccessToken, nil
}

// FetchProfile returns the profile of the user owning accessToken,
// normalised for storage: an empty discriminator becomes "0" and the avatar
// hash is expanded to its CDN URL.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (model.ExternalProfile, error) {
	s, err := c.session("Bearer " + accessToken)
	if err != nil {
		return model.ExternalProfile{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	u, err := s.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return model.ExternalProfile{}, fmt.Errorf("%w: fetch profile: %v", ErrProvider, err)
	}
	if u.ID == "" {
		return model.ExternalProfile{}, fmt.Errorf("%w: profile has no id", ErrProvider)
	}

	p := model.ExternalProfile{
		ID:            u.ID,
		Username:      u.Username,
		Discriminator: u.Discriminator,
	}
	if p.Discriminator == "" {
		p.Discriminator = "0"
	}
	if u.Email != "" {
		email := u.Email
		p.Email = &email
	}
	if u.Avatar != "" {
		avatar := discordgo.EndpointUserAvatar(u.ID, u.Avatar)
		p.Avatar = &avatar
	}
	return p, nil
}

// JoinGuild adds the user to the configured guild using the bot token.  It
// never returns an error: every failure is logged and reported as false.
// The call is bounded by its own timeout and ignores cancellation of ctx.
func (c *Client) JoinGuild(ctx context.Context, discordID, accessToken string) bool {
	log := c.log.With().Str("discord_id", discordID).Logger()
	if !c.AutoJoinEnabled() {
		log.Debug().Msg("guild auto-join disabled")
		metrics.GuildJoins.WithLabelValues("disabled").Inc()
		return false
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), joinTimeout)
	defer cancel()

	bot, err := c.session("Bot " + c.botToken)
	if err != nil {
		log.Warn().Err(err).Msg("guild auto-join: session")
		metrics.GuildJoins.WithLabelValues("error").Inc()
		return false
	}
	err = bot.GuildMemberAdd(c.guildID, discordID, &discordgo.GuildMemberAddParams{AccessToken: accessToken}, discordgo.WithContext(ctx))
	if err == nil {
		log.Info().Msg("user added to guild")
		metrics.GuildJoins.WithLabelValues("joined").Inc()
		return true
	}

	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		ev := log.Warn().Int("status", rest.Response.StatusCode)
		switch rest.Response.StatusCode {
		case http.StatusForbidden:
			ev.Msg("guild auto-join denied: bot lacks permission or guilds.join scope missing")
		case http.StatusNotFound:
			ev.Msg("guild auto-join failed: guild or user not found")
		case http.StatusBadRequest:
			ev.Msg("guild auto-join rejected: malformed request")
		default:
			ev.Msg("guild auto-join failed")
		}
		metrics.GuildJoins.WithLabelValues("rejected").Inc()
		return false
	}
	log.Warn().Err(err).Msg("guild auto-join failed")
	metrics.GuildJoins.WithLabelValues("error").Inc()
	return false
}

// session returns a REST-only discordgo session that never retries.
func (c *Client) session(token string) (*discordgo.Session, error) {
	s, err := discordgo.New(token)
	if err != nil {
		return nil, err
	}
	s.Client = c.http
	s.MaxRestRetries = 0
	s.ShouldRetryOnRateLimit = false
	return s, nil
}
