package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aman-churiwal/portfolio-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const (
	ContextUserID    = "user_id"
	ContextEmail     = "email"
	ContextRole      = "role"
	ContextRequestID = "request_id"
)

type TokenVerifier interface {
	Verify(token string) (service.Identity, error)
}

type Provisioner interface {
	Provision(ctx context.Context, userID string) error
}

// Auth validates provider tokens and provisions a usage counter the first
// time a user is seen by this process.
type Auth struct {
	verifier    TokenVerifier
	provisioner Provisioner
	seen        *cache.Cache
	logger      zerolog.Logger
}

func NewAuth(verifier TokenVerifier, provisioner Provisioner, logger zerolog.Logger) *Auth {
	return &Auth{
		verifier:    verifier,
		provisioner: provisioner,
		seen:        cache.New(time.Hour, 10*time.Minute),
		logger:      logger.With().Str("component", "auth").Logger(),
	}
}

// Validates the bearer token and requires authentication
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format. Use: Bearer <token>",
			})
			return
		}

		identity, err := a.verifier.Verify(parts[1])
		if err != nil {
			a.logger.Debug().Err(err).Str("request_id", c.GetString(ContextRequestID)).Msg("Rejected token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		a.provision(c.Request.Context(), identity.UserID)

		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextEmail, identity.Email)
		c.Set(ContextRole, identity.Role)

		c.Next()
	}
}

// A failed provision is not fatal: the quota gate creates the counter on
// first use and fails closed on its own if the store is down.
func (a *Auth) provision(ctx context.Context, userID string) {
	if _, found := a.seen.Get(userID); found {
		return
	}

	if err := a.provisioner.Provision(ctx, userID); err != nil {
		a.logger.Warn().Err(err).Str("user_id", userID).Msg("Could not provision user")
		return
	}
	a.seen.Set(userID, struct{}{}, cache.DefaultExpiration)
}

// Must run after RequireAuth
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}
		c.Next()
	}
}
