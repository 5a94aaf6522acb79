package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/config"
	"github.com/aman-churiwal/portfolio-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "server-test-secret-0123456"

func testConfig(placesURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Server.Environment = "test"
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.AdminRole = "admin"
	cfg.RateLimit.Backend = "memory"
	cfg.RateLimit.SweepInterval = config.Duration{Duration: time.Minute}
	cfg.Quota.Backend = "memory"
	cfg.Quota.FreeLimit = 10
	cfg.Parcel.BaseURL = "http://127.0.0.1:1"
	cfg.Places.BaseURL = placesURL
	return cfg
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := service.NewTokenVerifier(testSecret, "").Sign(service.Identity{UserID: userID, Role: role}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	places := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","predictions":[{"place_id":"x","description":"1 Main St"}]}`))
	}))
	t.Cleanup(places.Close)

	srv, err := New(testConfig(places.URL), zerolog.Nop(), nil, nil)
	require.NoError(t, err)
	return srv
}

func get(srv *Server, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	srv.GetRouter().ServeHTTP(w, req)
	return w
}

func TestRoutes_RequireAuth(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, get(srv, "/api/v1/usage", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(srv, "/api/v1/portfolios", "").Code)

	w := get(srv, "/api/v1/usage", bearer(t, "u1", ""))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"limit":10`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRoutes_AdminNeedsRole(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusForbidden, get(srv, "/admin/status", bearer(t, "u1", "member")).Code)

	w := get(srv, "/admin/status", bearer(t, "u1", "admin"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"parcel":"closed"`)
}

func TestRoutes_AutocompleteIsRateLimitedPerUser(t *testing.T) {
	srv := newTestServer(t)
	alice := bearer(t, "alice", "")

	for i := 0; i < 100; i++ {
		w := get(srv, "/api/v1/address/autocomplete?q=1+Main", alice)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := get(srv, "/api/v1/address/autocomplete?q=1+Main", alice)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, get(srv, "/api/v1/address/autocomplete?q=1+Main", bearer(t, "bob", "")).Code)
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Quota.Backend = "cassandra"
	_, err := New(cfg, zerolog.Nop(), nil, nil)
	assert.Error(t, err)

	cfg = testConfig("http://127.0.0.1:1")
	cfg.RateLimit.Backend = "redis"
	_, err = New(cfg, zerolog.Nop(), nil, nil)
	assert.Error(t, err)
}

func TestRoutes_HealthBeforeFirstProbe(t *testing.T) {
	srv := newTestServer(t)

	w := get(srv, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.Contains(t, w.Body.String(), `"database"`)

	assert.Equal(t, http.StatusForbidden, get(srv, "/admin/analytics", bearer(t, "u1", "member")).Code)
}
