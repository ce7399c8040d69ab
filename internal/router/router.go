package router // package router defines how HTTP routes are registered for the API

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iliyamo/customer-portal/internal/handler"
	"github.com/iliyamo/customer-portal/internal/response"
)

const bodyLimit = "1M"

// Configure installs the process-wide middleware chain and the envelope
// error handler on e.
func Configure(e *echo.Echo, origins []string, log zerolog.Logger) {
	e.HTTPErrorHandler = errorHandler(log)

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error().Err(err).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Bytes("stack", stack).
				Msg("panic recovered")
			return err
		},
	}))
	e.Use(requestLogger(log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
		AllowCredentials: true,
	}))
	e.Use(echomw.BodyLimit(bodyLimit))
}

// requestLogger logs one line per request.  Only the path is logged: the
// query string of /auth/callback carries the authorization code.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

// errorHandler renders errors that escaped a handler (unknown routes,
// wrong methods, panics, bind failures) with the standard envelope.
func errorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, msg := http.StatusInternalServerError, "internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch {
			case code == http.StatusNotFound:
				msg = "route not found"
			case code == http.StatusMethodNotAllowed:
				msg = "method not allowed"
			case code < http.StatusInternalServerError:
				msg = fmt.Sprint(he.Message)
			}
		}
		if code >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = response.Error(c, code, msg)
	}
}

// RegisterRoutes registers the unauthenticated service endpoints: the
// description at "/", readiness at /health, liveness at /healthz and the
// Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, s *handler.StatusHandler) {
	e.GET("/", s.Root)
	e.GET("/health", s.Ready)
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the OAuth login flow and the session-protected
// account endpoints under /auth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, session echo.MiddlewareFunc) {
	g := e.Group("/auth")
	g.GET("/login", a.Login)
	g.GET("/callback", a.Callback)

	g.GET("/me", a.Me, session)
	g.PUT("/profile", a.Profile, session)
	g.POST("/logout", a.Logout, session)
}
