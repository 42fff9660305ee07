package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/victoralfred/authz_sys/internal/domain/identity"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
	"github.com/victoralfred/authz_sys/internal/loaders"
	"github.com/victoralfred/authz_sys/internal/middleware"
	"github.com/victoralfred/authz_sys/internal/pagination"
	"github.com/victoralfred/authz_sys/internal/services"
)

type DirectoryHandler struct {
	directory *services.DirectoryService
}

type UserResponse struct {
	ID          uuid.UUID       `json:"id"`
	Email       string          `json:"email"`
	DisplayName string          `json:"display_name,omitempty"`
	Enabled     bool            `json:"enabled"`
	CreatedAt   string          `json:"created_at"`
	Roles       []NamedResponse `json:"roles,omitempty"`
	Groups      []NamedResponse `json:"groups,omitempty"`
	Permissions []string        `json:"permissions,omitempty"`
}

type NamedResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt string    `json:"created_at"`
}

func NewDirectoryHandler(directory *services.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{
		directory: directory,
	}
}

const timestampFormat = "2006-01-02T15:04:05Z"

func userResponse(u *identity.User) interface{} {
	display := ""
	if u.DisplayName != nil {
		display = *u.DisplayName
	}
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: display,
		Enabled:     u.Enabled,
		CreatedAt:   u.CreatedAt.UTC().Format(timestampFormat),
	}
}

// ListUsers searches the user directory
// @Summary Search users
// @Description Cursor-paged user search ordered by the requested sort fields
// @Tags Directory
// @Produce json
// @Param q query string false "Substring filter on email and display name"
// @Param first query int false "Page size, capped at 100"
// @Param after query string false "Resume cursor from a previous page"
// @Param sort query string false "Comma-separated sort fields, - prefix for descending"
// @Param expand query string false "Comma-separated nested fields: roles, groups, permissions"
// @Success 200 {object} ConnectionResponse
// @Failure 400 {object} ErrorResponse "Bad cursor, sort field, or expand field"
// @Router /directory/users [get]
func (h *DirectoryHandler) ListUsers(c *gin.Context) {
	req, err := searchRequestFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_QUERY",
			Message: err.Error(),
		})
		return
	}

	fields, err := expandFields(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_QUERY",
			Message: err.Error(),
		})
		return
	}

	conn, err := h.directory.SearchUsers(c.Request.Context(), req)
	if err != nil {
		writeSearchError(c, err)
		return
	}

	if len(fields) == 0 {
		c.JSON(http.StatusOK, connectionResponse(conn, userResponse))
		return
	}

	bundle, ok := middleware.LoadersFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "EXPAND_UNAVAILABLE",
			Message: "relationship expansion is not available",
		})
		return
	}

	resp, err := expandUsers(c.Request.Context(), bundle, conn, fields)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "SEARCH_FAILED",
			Message: "failed to expand relationships",
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// expandFields parses the expand query parameter into the set of nested
// relationships to resolve for the page.
func expandFields(c *gin.Context) (map[string]bool, error) {
	raw := c.Query("expand")
	if raw == "" {
		return nil, nil
	}
	fields := make(map[string]bool)
	for _, field := range strings.Split(raw, ",") {
		switch field {
		case "roles", "groups", "permissions":
			fields[field] = true
		default:
			return nil, fmt.Errorf("unknown expand field %q", field)
		}
	}
	return fields, nil
}

// expandUsers resolves the requested nested fields for a page of users
// through the request's batched loaders: one bulk query per relationship for
// the whole page.
func expandUsers(ctx context.Context, bundle *loaders.RequestLoaders, conn *pagination.Connection[*identity.User], fields map[string]bool) (ConnectionResponse, error) {
	userIDs := make([]uuid.UUID, 0, len(conn.Edges))
	for _, edge := range conn.Edges {
		userIDs = append(userIDs, edge.Node.ID)
	}

	var rolesByUser map[uuid.UUID][]*rbac.Role
	if fields["roles"] || fields["permissions"] {
		var err error
		rolesByUser, err = bundle.RolesForUser.Load(ctx, userIDs)
		if err != nil {
			return ConnectionResponse{}, err
		}
	}

	var groupsByUser map[uuid.UUID][]*identity.Group
	if fields["groups"] {
		var err error
		groupsByUser, err = bundle.GroupsForUser.Load(ctx, userIDs)
		if err != nil {
			return ConnectionResponse{}, err
		}
	}

	var permsByRole map[uuid.UUID][]*rbac.Permission
	if fields["permissions"] {
		var roleIDs []uuid.UUID
		for _, roles := range rolesByUser {
			for _, role := range roles {
				roleIDs = append(roleIDs, role.ID)
			}
		}
		var err error
		permsByRole, err = bundle.PermissionsForRole.Load(ctx, roleIDs)
		if err != nil {
			return ConnectionResponse{}, err
		}
	}

	return connectionResponse(conn, func(u *identity.User) interface{} {
		resp := userResponse(u).(UserResponse)
		if fields["roles"] {
			for _, role := range rolesByUser[u.ID] {
				resp.Roles = append(resp.Roles, NamedResponse{
					ID:        role.ID,
					Name:      role.Name,
					CreatedAt: role.CreatedAt.UTC().Format(timestampFormat),
				})
			}
		}
		if fields["groups"] {
			for _, g := range groupsByUser[u.ID] {
				resp.Groups = append(resp.Groups, NamedResponse{
					ID:        g.ID,
					Name:      g.Name,
					CreatedAt: g.CreatedAt.UTC().Format(timestampFormat),
				})
			}
		}
		if fields["permissions"] {
			seen := make(map[string]struct{})
			for _, role := range rolesByUser[u.ID] {
				for _, p := range permsByRole[role.ID] {
					if _, ok := seen[p.Name]; ok {
						continue
					}
					seen[p.Name] = struct{}{}
					resp.Permissions = append(resp.Permissions, p.Name)
				}
			}
		}
		return resp
	}), nil
}

// ListGroups searches the group directory
// @Summary Search groups
// @Tags Directory
// @Produce json
// @Success 200 {object} ConnectionResponse
// @Router /directory/groups [get]
func (h *DirectoryHandler) ListGroups(c *gin.Context) {
	req, err := searchRequestFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_QUERY", Message: err.Error()})
		return
	}

	conn, err := h.directory.SearchGroups(c.Request.Context(), req)
	if err != nil {
		writeSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, connectionResponse(conn, func(g *identity.Group) interface{} {
		return NamedResponse{ID: g.ID, Name: g.Name, CreatedAt: g.CreatedAt.UTC().Format(timestampFormat)}
	}))
}

// ListRoles searches the role catalog
// @Summary Search roles
// @Tags Directory
// @Produce json
// @Success 200 {object} ConnectionResponse
// @Router /directory/roles [get]
func (h *DirectoryHandler) ListRoles(c *gin.Context) {
	req, err := searchRequestFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_QUERY", Message: err.Error()})
		return
	}

	conn, err := h.directory.SearchRoles(c.Request.Context(), req)
	if err != nil {
		writeSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, connectionResponse(conn, func(r *rbac.Role) interface{} {
		return NamedResponse{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt.UTC().Format(timestampFormat)}
	}))
}

// ListPermissions searches the permission catalog
// @Summary Search permissions
// @Tags Directory
// @Produce json
// @Success 200 {object} ConnectionResponse
// @Router /directory/permissions [get]
func (h *DirectoryHandler) ListPermissions(c *gin.Context) {
	req, err := searchRequestFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_QUERY", Message: err.Error()})
		return
	}

	conn, err := h.directory.SearchPermissions(c.Request.Context(), req)
	if err != nil {
		writeSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, connectionResponse(conn, func(p *rbac.Permission) interface{} {
		return NamedResponse{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt.UTC().Format(timestampFormat)}
	}))
}
