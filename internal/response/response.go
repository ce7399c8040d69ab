// Package response writes the JSON envelope shared by every endpoint:
//
//	{"success": bool, "data": ..., "error": "...", "message": "..."}
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK writes a successful envelope carrying data.
func OK(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

// Message writes a successful envelope with a human readable message and
// optional data.
func Message(c echo.Context, status int, msg string, data any) error {
	return c.JSON(status, Envelope{Success: true, Data: data, Message: msg})
}

// Error writes a failed envelope.
func Error(c echo.Context, status int, msg string) error {
	return c.JSON(status, Envelope{Success: false, Error: msg})
}

// Internal writes the generic 500 envelope.  The cause must be logged by
// the caller; it never reaches the client.
func Internal(c echo.Context) error {
	return Error(c, http.StatusInternalServerError, "internal server error")
}
