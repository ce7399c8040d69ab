package middleware

import (
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/customer-portal/internal/response"
	"github.com/iliyamo/customer-portal/internal/utils"
)

// SessionAuth verifies the "Authorization: Bearer <token>" session token
// (HS256 signature and expiry) and attaches its claims to the context.
// Missing, malformed and expired tokens are all answered with 401.
func SessionAuth(secret string, log zerolog.Logger) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey: sessionKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return utils.ParseSessionToken(secret, auth)
		},
		SuccessHandler: func(c echo.Context) {
			if claims, ok := SessionFromContext(c); ok {
				c.Set(userIDKey, claims.UserID)
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			log.Debug().Str("path", c.Path()).Msg("session token rejected")
			return response.Error(c, http.StatusUnauthorized, "invalid or expired session token")
		},
	})
}
