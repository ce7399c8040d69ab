package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/customer-portal/internal/handler"
	"github.com/iliyamo/customer-portal/internal/middleware"
	"github.com/iliyamo/customer-portal/internal/response"
	"github.com/iliyamo/customer-portal/internal/utils"
)

const (
	jwtSecret = "router-test-jwt"
	apiSecret = "router-test-api-secret"
)

type consent struct{}

func (consent) AuthCodeURL(state string) string {
	return "https://discord.test/authorize?state=" + state
}

// newTestServer wires the full route table.  Stores are nil, so only
// requests rejected before reaching a store may be sent.
func newTestServer() *echo.Echo {
	log := zerolog.Nop()
	e := echo.New()
	Configure(e, []string{"https://portal.test"}, log)

	session := middleware.SessionAuth(jwtSecret, log)
	secret := middleware.APISecretAuth(apiSecret, log)

	purchases := handler.NewPurchaseHandler(nil, nil, log)
	notifications := handler.NewNotificationHandler(nil, nil, log)
	support := handler.NewSupportHandler(nil, nil, log)

	RegisterRoutes(e, handler.NewStatusHandler(nil, handler.ServiceInfo{Name: "customer-portal"}))
	RegisterAuth(e, handler.NewAuthHandler(consent{}, nil, nil, "https://portal.test", false, log), session)

	api := e.Group("/api")
	RegisterCustomer(api, CustomerHandlers{Purchases: purchases, Support: support, Notifications: notifications}, session, func(next echo.HandlerFunc) echo.HandlerFunc { return next })
	RegisterIntegration(api, purchases, notifications, handler.NewUserHandler(nil, log), secret)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, auth, body string) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env response.Envelope
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func sessionHeader(t *testing.T) string {
	t.Helper()
	tok, err := utils.NewSessionSigner(jwtSecret, time.Hour).Sign(1, "123456789012345678", "ada")
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestUnknownRouteEnvelope(t *testing.T) {
	rec, env := do(t, newTestServer(), http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "route not found", env.Error)
}

func TestServiceEndpoints(t *testing.T) {
	e := newTestServer()

	rec, _ := do(t, e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec, env := do(t, e, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	// No database configured in this server.
	rec, _ = do(t, e, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/auth/login", "", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderLocation), "https://discord.test/authorize?state="))
}

func TestSessionRoutesRequireToken(t *testing.T) {
	e := newTestServer()
	routes := []struct{ method, path string }{
		{http.MethodGet, "/auth/me"},
		{http.MethodPut, "/auth/profile"},
		{http.MethodPost, "/auth/logout"},
		{http.MethodGet, "/api/purchases/my"},
		{http.MethodGet, "/api/purchases/stats"},
		{http.MethodGet, "/api/purchases/1"},
		{http.MethodGet, "/api/support/tickets"},
		{http.MethodPost, "/api/support/tickets"},
		{http.MethodGet, "/api/support/tickets/1"},
		{http.MethodPost, "/api/support/tickets/1/messages"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodPut, "/api/notifications/1/read"},
		{http.MethodPut, "/api/notifications/read-all"},
		{http.MethodDelete, "/api/notifications/1"},
	}
	for _, r := range routes {
		rec, env := do(t, e, r.method, r.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.method+" "+r.path)
		assert.False(t, env.Success)

		// The shared secret is not a session.
		rec, _ = do(t, e, r.method, r.path, "Bearer "+apiSecret, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.method+" "+r.path)
	}
}

func TestIntegrationRoutesRequireSecret(t *testing.T) {
	e := newTestServer()
	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/purchases/create"},
		{http.MethodPost, "/api/notifications/create"},
		{http.MethodGet, "/api/user/by-discord-id/123456789012345678"},
	}
	for _, r := range routes {
		rec, _ := do(t, e, r.method, r.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.path)

		// A valid session is not the shared secret.
		rec, _ = do(t, e, r.method, r.path, sessionHeader(t), "")
		assert.Equal(t, http.StatusForbidden, rec.Code, r.path)
	}

	rec, env := do(t, e, http.MethodGet, "/api/user/by-discord-id/abc", "Bearer "+apiSecret, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid discord id", env.Error)

	rec, _ = do(t, e, http.MethodPost, "/api/purchases/create", "Bearer "+apiSecret, `{"item":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionReachesHandler(t *testing.T) {
	e := newTestServer()
	rec, env := do(t, e, http.MethodGet, "/api/purchases/my?status=refunded", sessionHeader(t), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid status", env.Error)

	rec, _ = do(t, e, http.MethodPost, "/auth/logout", sessionHeader(t), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
