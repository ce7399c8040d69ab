package handler

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/customer-portal/internal/repository"
	"github.com/iliyamo/customer-portal/internal/response"
)

// Discord snowflakes are 17 to 19 decimal digits.
var discordIDPattern = regexp.MustCompile(`^\d{17,19}$`)

// UserHandler serves identity lookups for integrations.
type UserHandler struct {
	Identities IdentityReader
	Log        zerolog.Logger
}

func NewUserHandler(ids IdentityReader, log zerolog.Logger) *UserHandler {
	return &UserHandler{Identities: ids, Log: log}
}

// ByDiscordID resolves a Discord id to the local identity.
//
//	GET /api/user/by-discord-id/:id  (shared secret)
func (h *UserHandler) ByDiscordID(c echo.Context) error {
	discordID := c.Param("id")
	if !discordIDPattern.MatchString(discordID) {
		return response.Error(c, http.StatusBadRequest, "invalid discord id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	id, err := h.Identities.GetByDiscordID(ctx, discordID)
	if errors.Is(err, repository.ErrNotFound) {
		return response.Error(c, http.StatusNotFound, "user not found")
	}
	if err != nil {
		h.Log.Error().Err(err).Msg("lookup identity by discord id")
		return response.Internal(c)
	}
	return response.OK(c, http.StatusOK, id)
}
