package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/victoralfred/authz_sys/internal/domain/audit"
	"github.com/victoralfred/authz_sys/internal/domain/auth"
	"github.com/victoralfred/authz_sys/internal/domain/principal"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
)

// PrincipalResolver interface - Interface Segregation Principle
type PrincipalResolver interface {
	FromToken(token string) (principal.Principal, error)
}

// Authorizer interface - Interface Segregation Principle
type Authorizer interface {
	CheckPrincipal(ctx context.Context, p principal.Principal, permission string, attributes map[string]interface{}) (rbac.Decision, error)
}

const (
	principalKey = "principal"
	loadersKey   = "loaders"
)

// Authenticate resolves the bearer token into a principal and stores it in
// the request context. Every failure mode collapses to the same 401 so the
// response does not leak whether a token was malformed, expired, or forged.
func Authenticate(resolver PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthenticated(c)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthenticated(c)
			return
		}

		p, err := resolver.FromToken(parts[1])
		if err != nil {
			abortUnauthenticated(c)
			return
		}

		if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
			c.Request = c.Request.WithContext(audit.WithRequestID(c.Request.Context(), requestID))
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// RequirePermission gates a route on a permission check for the
// authenticated principal.
func RequirePermission(permission string, authorizer Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			abortUnauthenticated(c)
			return
		}

		decision, err := authorizer.CheckPrincipal(c.Request.Context(), p, permission, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "AUTHZ_CHECK_FAILED",
					"message": "Failed to check permission",
				},
			})
			c.Abort()
			return
		}

		if !decision.Allowed {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "PERMISSION_DENIED",
					"message": auth.NewPermissionDenied(permission).Error(),
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// PrincipalFromContext returns the authenticated principal for the request.
func PrincipalFromContext(c *gin.Context) (principal.Principal, bool) {
	value, exists := c.Get(principalKey)
	if !exists {
		return nil, false
	}
	p, ok := value.(principal.Principal)
	return p, ok
}

func abortUnauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "AUTHENTICATION_REQUIRED",
			"message": auth.ErrAuthenticationRequired.Error(),
		},
	})
	c.Abort()
}
