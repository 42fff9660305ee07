package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victoralfred/authz_sys/internal/domain/auth"
	"github.com/victoralfred/authz_sys/internal/domain/principal"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
	"github.com/victoralfred/authz_sys/internal/middleware"
)

type stubResolver struct {
	principal principal.Principal
	err       error
}

func (s *stubResolver) FromToken(string) (principal.Principal, error) {
	return s.principal, s.err
}

type stubAuthorizer struct {
	decision rbac.Decision
	err      error
}

func (s *stubAuthorizer) CheckPrincipal(context.Context, principal.Principal, string, map[string]interface{}) (rbac.Decision, error) {
	return s.decision, s.err
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body struct {
		Error map[string]interface{} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func newTestRouter(resolver middleware.PrincipalResolver, handler gin.HandlerFunc, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	chain := append([]gin.HandlerFunc{middleware.Authenticate(resolver)}, extra...)
	chain = append(chain, handler)
	router.GET("/protected", chain...)
	return router
}

func TestAuthenticate(t *testing.T) {
	userID := uuid.New()
	resolver := &stubResolver{principal: principal.UserPrincipal{UserID: userID}}

	t.Run("missing header", func(t *testing.T) {
		router := newTestRouter(resolver, func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, auth.ErrAuthenticationRequired.Error(), errorBody(t, w)["message"])
	})

	t.Run("not bearer format", func(t *testing.T) {
		router := newTestRouter(resolver, func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejected token", func(t *testing.T) {
		router := newTestRouter(&stubResolver{err: auth.ErrAuthenticationRequired},
			func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token exposes the principal", func(t *testing.T) {
		var got principal.Principal
		router := newTestRouter(resolver, func(c *gin.Context) {
			p, ok := middleware.PrincipalFromContext(c)
			require.True(t, ok)
			got = p
			c.Status(http.StatusOK)
		})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, got)
		assert.Equal(t, userID, got.SubjectID())
	})
}

func TestRequirePermission(t *testing.T) {
	resolver := &stubResolver{principal: principal.UserPrincipal{UserID: uuid.New()}}
	okHandler := func(c *gin.Context) { c.Status(http.StatusOK) }

	run := func(authorizer middleware.Authorizer) *httptest.ResponseRecorder {
		router := newTestRouter(resolver, okHandler,
			middleware.RequirePermission(rbac.PermissionUserRead, authorizer))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("allowed", func(t *testing.T) {
		w := run(&stubAuthorizer{decision: rbac.Allow()})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("denied", func(t *testing.T) {
		w := run(&stubAuthorizer{decision: rbac.Deny(rbac.ReasonNoPermission)})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "PermissionDenied: "+rbac.PermissionUserRead, errorBody(t, w)["message"])
	})

	t.Run("engine failure", func(t *testing.T) {
		w := run(&stubAuthorizer{err: errors.New("store down")})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
