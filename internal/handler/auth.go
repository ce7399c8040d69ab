package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/customer-portal/internal/metrics"
	"github.com/iliyamo/customer-portal/internal/model"
	"github.com/iliyamo/customer-portal/internal/repository"
	"github.com/iliyamo/customer-portal/internal/response"
	"github.com/iliyamo/customer-portal/internal/service"
)

const (
	stateCookie    = "oauth_state"
	stateLifetime  = 10 * time.Minute
	callbackBudget = 30 * time.Second
)

// ConsentURLBuilder builds the provider consent URL for a state value.
type ConsentURLBuilder interface {
	AuthCodeURL(state string) string
}

// LoginCompleter turns an authorization code into a signed session.
type LoginCompleter interface {
	Complete(ctx context.Context, code string) (*service.Resolution, error)
}

// IdentityReader loads identities for the profile endpoints.
type IdentityReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Identity, error)
	GetByDiscordID(ctx context.Context, discordID string) (*model.Identity, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Consent      ConsentURLBuilder
	Flow         LoginCompleter
	Identities   IdentityReader
	FrontendURL  string
	SecureCookie bool
	Log          zerolog.Logger
}

func NewAuthHandler(consent ConsentURLBuilder, flow LoginCompleter, ids IdentityReader, frontendURL string, secure bool, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		Consent:      consent,
		Flow:         flow,
		Identities:   ids,
		FrontendURL:  strings.TrimRight(frontendURL, "/"),
		SecureCookie: secure,
		Log:          log,
	}
}

// Login starts the OAuth flow: a random state is stored in a short lived
// cookie and the browser is sent to the provider's consent page.
func (h *AuthHandler) Login(c echo.Context) error {
	state := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateLifetime.Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, h.Consent.AuthCodeURL(state))
}

// Callback completes the OAuth flow.  Success and failure both end in a
// redirect to the frontend; failures carry a coarse error code only.
func (h *AuthHandler) Callback(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return h.fail(c, &service.LoginError{Kind: service.KindMissingCode})
	}
	if !h.stateMatches(c) {
		return h.fail(c, &service.LoginError{Kind: service.KindInvalidState})
	}
	h.clearState(c)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), callbackBudget)
	defer cancel()

	res, err := h.Flow.Complete(ctx, code)
	if err != nil {
		return h.fail(c, err)
	}

	outcome := "updated"
	if res.Created {
		outcome = "created"
	}
	metrics.Logins.WithLabelValues(outcome).Inc()
	h.Log.Info().
		Uint64("user_id", res.UserID).
		Str("discord_id", res.DiscordID).
		Bool("created", res.Created).
		Msg("login completed")
	return c.Redirect(http.StatusFound, h.FrontendURL+"/customer?token="+url.QueryEscape(res.Session.Token))
}

func (h *AuthHandler) stateMatches(c echo.Context) bool {
	got := c.QueryParam("state")
	ck, err := c.Cookie(stateCookie)
	if err != nil || ck.Value == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(ck.Value)) == 1
}

func (h *AuthHandler) clearState(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) fail(c echo.Context, err error) error {
	kind := service.KindStoreUnavailable
	var le *service.LoginError
	if errors.As(err, &le) {
		kind = le.Kind
	}
	metrics.Logins.WithLabelValues(string(kind)).Inc()
	h.Log.Warn().Err(err).Str("reason", string(kind)).Msg("login failed")
	return c.Redirect(http.StatusFound, h.FrontendURL+"?error="+url.QueryEscape(string(kind)))
}

// Me returns the stored identity of the caller.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	id, err := h.Identities.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return response.Error(c, http.StatusNotFound, "user not found")
	}
	if err != nil {
		h.Log.Error().Err(err).Uint64("user_id", uid).Msg("load identity")
		return response.Internal(c)
	}
	return response.OK(c, http.StatusOK, id)
}

// Profile is a no-op refresh: the record is only ever rewritten from the
// provider at login, so the current row is returned as is.
func (h *AuthHandler) Profile(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	id, err := h.Identities.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return response.Error(c, http.StatusNotFound, "user not found")
	}
	if err != nil {
		h.Log.Error().Err(err).Uint64("user_id", uid).Msg("load identity")
		return response.Internal(c)
	}
	return response.Message(c, http.StatusOK, "profile updated", id)
}

// Logout is stateless: sessions are bearer tokens, the client discards
// its copy.
func (h *AuthHandler) Logout(c echo.Context) error {
	return response.Message(c, http.StatusOK, "logged out successfully", nil)
}
