package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victoralfred/authz_sys/internal/domain/rbac"
	"github.com/victoralfred/authz_sys/internal/handlers"
	"github.com/victoralfred/authz_sys/internal/services"
)

// adminGrantStore records grant writes. Unimplemented methods panic through
// the embedded nil interface.
type adminGrantStore struct {
	rbac.GrantRepository
	createdRoles []*rbac.Role
	linked       [][2]uuid.UUID
	unlinked     [][2]uuid.UUID
	createErr    error
}

func (s *adminGrantStore) CreateRole(ctx context.Context, role *rbac.Role) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.createdRoles = append(s.createdRoles, role)
	return nil
}

func (s *adminGrantStore) LinkPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	s.linked = append(s.linked, [2]uuid.UUID{roleID, permissionID})
	return nil
}

func (s *adminGrantStore) UnlinkPermission(ctx context.Context, roleID, permissionID uuid.UUID) error {
	s.unlinked = append(s.unlinked, [2]uuid.UUID{roleID, permissionID})
	return nil
}

func adminRouter(store *adminGrantStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	service := services.NewGrantService(store, nil, nil, nil, nil)
	handler := handlers.NewAdminHandler(service, nil)

	r := gin.New()
	r.POST("/admin/roles", handler.CreateRole)
	r.POST("/admin/roles/:id/permissions", handler.LinkPermission)
	r.DELETE("/admin/roles/:id/permissions/:permissionID", handler.UnlinkPermission)
	return r
}

func TestAdminCreateRole(t *testing.T) {
	store := &adminGrantStore{}
	r := adminRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/roles", strings.NewReader(`{"name":"auditor"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp handlers.NamedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "auditor", resp.Name)
	assert.NotEqual(t, uuid.Nil, resp.ID)
	require.Len(t, store.createdRoles, 1)
}

func TestAdminCreateRole_MissingName(t *testing.T) {
	store := &adminGrantStore{}
	r := adminRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/roles", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.createdRoles)
}

func TestAdminCreateRole_DuplicateName(t *testing.T) {
	store := &adminGrantStore{createErr: rbac.ErrRoleNameAlreadyExists}
	r := adminRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/roles", strings.NewReader(`{"name":"auditor"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminLinkAndUnlinkPermission(t *testing.T) {
	store := &adminGrantStore{}
	r := adminRouter(store)
	roleID := uuid.New()
	permissionID := uuid.New()

	w := httptest.NewRecorder()
	body := `{"permission_id":"` + permissionID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/roles/"+roleID.String()+"/permissions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, store.linked, 1)
	assert.Equal(t, [2]uuid.UUID{roleID, permissionID}, store.linked[0])

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete,
		"/admin/roles/"+roleID.String()+"/permissions/"+permissionID.String(), nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, store.unlinked, 1)
}

func TestAdminLinkPermission_BadRoleID(t *testing.T) {
	store := &adminGrantStore{}
	r := adminRouter(store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/roles/not-a-uuid/permissions",
		strings.NewReader(`{"permission_id":"`+uuid.NewString()+`"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.linked)
}
