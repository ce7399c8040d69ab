package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/customer-portal/internal/utils"
)

const (
	sessionKey = "session"
	userIDKey  = "user_id"
)

// SessionFromContext returns the claims attached by SessionAuth.
func SessionFromContext(c echo.Context) (*utils.SessionClaims, bool) {
	claims, ok := c.Get(sessionKey).(*utils.SessionClaims)
	return claims, ok && claims != nil
}

// UserID returns the local user id of the authenticated caller.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(userIDKey).(uint64)
	return id, ok && id != 0
}

// currentUserID is the user part of response cache keys.
func currentUserID(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
