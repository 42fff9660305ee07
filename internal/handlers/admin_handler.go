package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/victoralfred/authz_sys/internal/domain/identity"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
	"github.com/victoralfred/authz_sys/internal/services"
)

// AdminHandler exposes grant administration: roles, permissions, their
// links, direct and group role assignments, groups and their members. Every
// route is gated by the matching security:<resource>:write permission.
type AdminHandler struct {
	grants   *services.GrantService
	identity *services.IdentityService
}

type CreateNamedRequest struct {
	Name string `json:"name" binding:"required"`
}

type LinkPermissionRequest struct {
	PermissionID uuid.UUID `json:"permission_id" binding:"required"`
}

type AssignRoleRequest struct {
	RoleID     uuid.UUID  `json:"role_id" binding:"required"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

type AddMemberRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

func NewAdminHandler(grants *services.GrantService, identitySvc *services.IdentityService) *AdminHandler {
	return &AdminHandler{
		grants:   grants,
		identity: identitySvc,
	}
}

// CreateRole creates a named role
// @Summary Create a role
// @Tags Admin
// @Accept json
// @Produce json
// @Success 201 {object} NamedResponse
// @Failure 409 {object} ErrorResponse "Name already taken"
// @Router /admin/roles [post]
func (h *AdminHandler) CreateRole(c *gin.Context) {
	var req CreateNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	role, err := h.grants.CreateRole(c.Request.Context(), req.Name)
	if err != nil {
		writeAdminError(c, err)
		return
	}
	c.JSON(http.StatusCreated, NamedResponse{
		ID:        role.ID,
		Name:      role.Name,
		CreatedAt: role.CreatedAt.UTC().Format(timestampFormat),
	})
}

// CreatePermission creates a named permission
// @Summary Create a permission
// @Tags Admin
// @Accept json
// @Produce json
// @Success 201 {object} NamedResponse
// @Router /admin/permissions [post]
func (h *AdminHandler) CreatePermission(c *gin.Context) {
	var req CreateNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	permission, err := h.grants.CreatePermission(c.Request.Context(), req.Name)
	if err != nil {
		writeAdminError(c, err)
		return
	}
	c.JSON(http.StatusCreated, NamedResponse{
		ID:        permission.ID,
		Name:      permission.Name,
		CreatedAt: permission.CreatedAt.UTC().Format(timestampFormat),
	})
}

// LinkPermission grants a permission to a role
// @Summary Link a permission to a role
// @Tags Admin
// @Accept json
// @Success 204
// @Router /admin/roles/{id}/permissions [post]
func (h *AdminHandler) LinkPermission(c *gin.Context) {
	roleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req LinkPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	if err := h.grants.LinkPermission(c.Request.Context(), roleID, req.PermissionID); err != nil {
		writeAdminError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UnlinkPermission revokes a permission from a role
// @Summary Unlink a permission from a role
// @Tags Admin
// @Success 204
// @Router /admin/roles/{id}/permissions/{permissionID} [delete]
func (h *AdminHandler) UnlinkPermission(c *gin.Context) {
	roleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	permissionID, ok := pathID(c, "permissionID")
	if !ok {
		return
	}

	if err := h.grants.UnlinkPermission(c.Request.Context(), roleID, permissionID); err != nil {
		writeAdminError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AssignRole directly grants a role to a user with an optional validity
// window
// @Summary Assign a role to a user
// @Tags Admin
// @Accept json
// @Success 204
// @Router /admin/users/{id}/roles [post]
func (h *AdminHandler) AssignRole(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	if err := h.grants.AssignRole(c.Request.Context(), userID, req.RoleID, req.ValidFrom, req.ValidUntil); err != nil {
		writeAdminError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RevokeRole removes a direct role grant
// @Summary Revoke a role from a user
// @Tags Admin
// @Success 204
// @Router /admin/users/{id}/roles/{roleID} [delete]
func (h *AdminHandler) RevokeRole(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	roleID, ok := pathID(c, "roleID")
	if !ok {
		return
	}

	if err := h.grants.RevokeRole(c.Request.Context(), userID, roleID); err != nil {
		writeAdminError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateGroup creates a named group
// @Summary Create a group
// @Tags Admin
// @Accept json
// @Produce json
// @Success 201 {object} NamedResponse
// @Router /admin/groups [post]
func (h *AdminHandler) CreateGroup(c *gin.Context) {
	var req CreateNamedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	g, err := h.identity.CreateGroup(c.Request.Context(), req.Name)
	if err != nil {
		writeAdminError(c, err)
		return
	}
	c.JSON(http.StatusCreated, NamedResponse{
		ID:        g.ID,
		Name:      g.Name,
		CreatedAt: g.CreatedAt.UTC().Format(timestampFormat),
	})
}

// AssignGroupRole grants a role to every member of a group
// @Summary Assign a role to a group
// @Tags Admin
// @Accept json
// @Success 204
// @Router /admin/groups/{id}/roles [post]
func (h *AdminHandler) AssignGroupRole(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	if err := h.grants.AssignGroupRole(c.Request.Context(), groupID, req.RoleID); err != nil {
		writeAdminError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RevokeGroupRole removes a role grant from a group
// @Summary Revoke a role from a group
// @Tags Admin
// @Success 204
// @Router /admin/groups/{id}/roles/{roleID} [delete]
func (h *AdminHandler) RevokeGroupRole(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	roleID, ok := pathID(c, "roleID")
	if !ok {
		return
	}

	if err := h.grants.RevokeGroupRole(c.Request.Context(), groupID, roleID); err != nil {
		writeAdminError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddGroupMember adds a user to a group
// @Summary Add a group member
// @Tags Admin
// @Accept json
// @Success 204
// @Router /admin/groups/{id}/members [post]
func (h *AdminHandler) AddGroupMember(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	if err := h.identity.AddGroupMember(c.Request.Context(), req.UserID, groupID); err != nil {
		writeAdminError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveGroupMember removes a user from a group
// @Summary Remove a group member
// @Tags Admin
// @Success 204
// @Router /admin/groups/{id}/members/{userID} [delete]
func (h *AdminHandler) RemoveGroupMember(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userID")
	if !ok {
		return
	}

	if err := h.identity.RemoveGroupMember(c.Request.Context(), userID, groupID); err != nil {
		writeAdminError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// pathID parses a uuid path parameter, writing the 400 itself on failure.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: name + " must be a UUID",
		})
		return uuid.Nil, false
	}
	return id, true
}

func writeAdminError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, rbac.ErrInvalidReference),
		errors.Is(err, rbac.ErrRoleNotFound),
		errors.Is(err, rbac.ErrPermissionNotFound),
		errors.Is(err, identity.ErrUserNotFound),
		errors.Is(err, identity.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})

	case errors.Is(err, rbac.ErrRoleNameAlreadyExists),
		errors.Is(err, rbac.ErrPermissionNameAlreadyExists),
		errors.Is(err, identity.ErrGroupNameAlreadyExists):
		c.JSON(http.StatusConflict, ErrorResponse{Code: "ALREADY_EXISTS", Message: err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "ADMIN_WRITE_FAILED",
			Message: "failed to apply change",
		})
	}
}
