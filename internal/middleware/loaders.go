package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/victoralfred/authz_sys/internal/domain/identity"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
	"github.com/victoralfred/authz_sys/internal/loaders"
)

// WithLoaders installs a fresh batched-loader bundle per request. Loaders
// memoize for the lifetime of one request only, so handlers that expand
// relationships for a page of results coalesce their lookups without any
// cross-request staleness.
func WithLoaders(identityRepo identity.Repository, grants rbac.GrantRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(loadersKey, loaders.NewRequestLoaders(identityRepo, grants))
		c.Next()
	}
}

// LoadersFromContext returns the request's loader bundle.
func LoadersFromContext(c *gin.Context) (*loaders.RequestLoaders, bool) {
	value, exists := c.Get(loadersKey)
	if !exists {
		return nil, false
	}
	bundle, ok := value.(*loaders.RequestLoaders)
	return bundle, ok
}
