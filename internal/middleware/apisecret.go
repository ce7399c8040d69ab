package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/customer-portal/internal/metrics"
	"github.com/iliyamo/customer-portal/internal/response"
)

// APISecretAuth guards backend-to-backend routes with a shared secret sent
// as "Authorization: Bearer <secret>".
//
//	missing header or prefix -> 401
//	no secret configured     -> 500
//	any other mismatch       -> 403
//
// Both values are hashed before the constant-time comparison so neither
// content nor length leaks through timing.  Neither value is ever logged.
func APISecretAuth(secret string, log zerolog.Logger) echo.MiddlewareFunc {
	expected := sha256.Sum256([]byte(secret))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ev := func() *zerolog.Event {
				return log.Warn().Str("ip", c.RealIP()).Str("method", req.Method).Str("path", req.URL.Path)
			}

			header := req.Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				ev().Msg("integration call without bearer token")
				metrics.IntegrationAuth.WithLabelValues("missing").Inc()
				return response.Error(c, http.StatusUnauthorized, "authorization token required")
			}
			if secret == "" {
				log.Error().Msg("API_SECRET is not configured")
				metrics.IntegrationAuth.WithLabelValues("misconfigured").Inc()
				return response.Error(c, http.StatusInternalServerError, "server misconfiguration")
			}

			got := sha256.Sum256([]byte(strings.TrimPrefix(header, "Bearer ")))
			if subtle.ConstantTimeCompare(got[:], expected[:]) != 1 {
				ev().Msg("integration call with invalid token")
				metrics.IntegrationAuth.WithLabelValues("invalid").Inc()
				return response.Error(c, http.StatusForbidden, "invalid token")
			}
			metrics.IntegrationAuth.WithLabelValues("ok").Inc()
			return next(c)
		}
	}
}
