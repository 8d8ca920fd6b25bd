package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/actor"
	"lotkeeper/internal/core/apperror"
)

// TokenValidator interface for token validation.
type TokenValidator interface {
	ValidateToken(tokenString string) (*actor.Actor, error)
}

// Auth middleware validates JWT tokens and populates the actor context.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Extract token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		// Check Bearer prefix
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		a, err := validator.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		// Add actor to context
		ctx := actor.WithActor(c.Request.Context(), a)
		c.Request = c.Request.WithContext(ctx)

		// Store in gin context for easy access
		c.Set("actor_id", a.ID)

		c.Next()
	}
}

// RequireRole middleware checks if the actor has one of the required roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := actor.Get(c.Request.Context())
		if a == nil {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}

		for _, required := range roles {
			for _, actorRole := range a.Roles {
				if actorRole == required {
					c.Next()
					return
				}
			}
		}
		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("required_roles", roles),
		)
		c.Abort()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
