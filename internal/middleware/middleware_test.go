package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/models"
	"github.com/aman-churiwal/portfolio-api/internal/ratelimit"
	"github.com/aman-churiwal/portfolio-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingProvisioner struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (p *countingProvisioner) Provision(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[userID]++
	return p.err
}

const testSecret = "middleware-test-secret-0123"

func signToken(t *testing.T, id service.Identity) string {
	t.Helper()
	token, err := service.NewTokenVerifier(testSecret, "").Sign(id, time.Hour)
	require.NoError(t, err)
	return token
}

func authRouter(prov Provisioner) *gin.Engine {
	auth := NewAuth(service.NewTokenVerifier(testSecret, ""), prov, zerolog.Nop())
	r := gin.New()
	r.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(ContextUserID)})
	})
	r.GET("/admin", auth.RequireAuth(), RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	prov := &countingProvisioner{}
	r := authRouter(prov)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + signToken(t, service.Identity{UserID: "u1"}), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequireAuth_ProvisionsOncePerUser(t *testing.T) {
	prov := &countingProvisioner{}
	r := authRouter(prov)
	token := signToken(t, service.Identity{UserID: "u1"})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 1, prov.calls["u1"])
}

func TestRequireAuth_ProvisionFailureIsRetried(t *testing.T) {
	prov := &countingProvisioner{err: errors.New("db down")}
	r := authRouter(prov)
	token := signToken(t, service.Identity{UserID: "u1"})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 2, prov.calls["u1"])
}

func TestRequireRole(t *testing.T) {
	r := authRouter(&countingProvisioner{})

	for _, tc := range []struct {
		role   string
		status int
	}{
		{"", http.StatusForbidden},
		{"member", http.StatusForbidden},
		{"admin", http.StatusNoContent},
	} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, service.Identity{UserID: "u1", Role: tc.role}))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, "role %q", tc.role)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(time.Minute), zerolog.Nop())
	cfg := ratelimit.Config{Window: time.Minute, MaxRequests: 2}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserID, c.GetHeader("X-Test-User"))
		c.Next()
	})
	r.GET("/search", RateLimit(limiter, "search", cfg), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/search", nil)
		req.Header.Set("X-Test-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do("alice")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, do("alice").Code)

	w = do("alice")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")

	assert.Equal(t, http.StatusOK, do("bob").Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRequestID))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get("X-Request-ID")
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zerolog.Nop()))
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, w.Body.String())
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}))
	r.GET("/api", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

type memorySink struct {
	mu      sync.Mutex
	batches [][]*models.RequestLog
}

func (s *memorySink) CreateBatch(_ context.Context, logs []*models.RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, logs)
	return nil
}

func (s *memorySink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestRequestRecorder_FlushesOnStop(t *testing.T) {
	sink := &memorySink{}
	rec := NewRequestRecorder(sink, 500, time.Hour, zerolog.Nop())
	rec.Start()

	r := gin.New()
	r.Use(RequestID(), rec.Middleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	for i := 0; i < 150; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/7", nil))
	}
	rec.Stop()

	assert.Equal(t, 150, sink.total())
	first := sink.batches[0][0]
	assert.Equal(t, "/items/:id", first.Path)
	assert.Equal(t, http.StatusAccepted, first.StatusCode)
	assert.NotEmpty(t, first.RequestID)
}

func TestRequestRecorder_RequestsAfterStopAreDropped(t *testing.T) {
	sink := &memorySink{}
	rec := NewRequestRecorder(sink, 10, time.Hour, zerolog.Nop())
	rec.Start()

	r := gin.New()
	r.Use(rec.Middleware())
	r.GET("/slow", func(c *gin.Context) { c.Status(http.StatusOK) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			assert.NotPanics(t, func() {
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
			})
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	rec.Stop()
	wg.Wait()

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.LessOrEqual(t, sink.total(), 50)
}
