package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victoralfred/authz_sys/internal/domain/principal"
	"github.com/victoralfred/authz_sys/internal/middleware"
	"github.com/victoralfred/authz_sys/internal/services"
)

type AuthorizationHandler struct {
	engine *services.AuthorizationService
}

type CheckRequest struct {
	Permission string                 `json:"permission" binding:"required"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

type CheckResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

func NewAuthorizationHandler(engine *services.AuthorizationService) *AuthorizationHandler {
	return &AuthorizationHandler{
		engine: engine,
	}
}

// Check evaluates one permission for the calling principal
// @Summary Check a permission
// @Description Evaluates the hybrid RBAC and policy decision for the caller
// @Tags Authorization
// @Accept json
// @Produce json
// @Param check body CheckRequest true "Permission and optional attribute context"
// @Success 200 {object} CheckResponse
// @Failure 400 {object} ErrorResponse "Missing permission"
// @Router /authz/check [post]
func (h *AuthorizationHandler) Check(c *gin.Context) {
	p, ok := middleware.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Code:    "AUTHENTICATION_REQUIRED",
			Message: "No authenticated principal",
		})
		return
	}

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST_BODY",
			Message: "Failed to parse request data: " + err.Error(),
		})
		return
	}

	decision, err := h.engine.CheckPrincipal(c.Request.Context(), p, req.Permission, req.Attributes)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "AUTHZ_CHECK_FAILED",
			Message: "Failed to check permission",
		})
		return
	}

	c.JSON(http.StatusOK, CheckResponse{
		Allowed: decision.Allowed,
		Reason:  decision.Reason,
	})
}

// MyPermissions lists the caller's effective permission names
// @Summary List effective permissions
// @Tags Authorization
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /authz/permissions [get]
func (h *AuthorizationHandler) MyPermissions(c *gin.Context) {
	p, ok := middleware.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Code:    "AUTHENTICATION_REQUIRED",
			Message: "No authenticated principal",
		})
		return
	}

	switch v := p.(type) {
	case principal.UserPrincipal:
		permissions, err := h.engine.GetUserPermissions(c.Request.Context(), v.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Code:    "PERMISSION_LOOKUP_FAILED",
				Message: "Failed to resolve permissions",
			})
			return
		}
		names := make([]string, 0, len(permissions))
		for _, permission := range permissions {
			names = append(names, permission.Name)
		}
		c.JSON(http.StatusOK, gin.H{"permissions": names})

	case principal.ServicePrincipal:
		// Service grants live in the token, not the RBAC store
		c.JSON(http.StatusOK, gin.H{"permissions": v.Permissions})

	default:
		c.JSON(http.StatusForbidden, ErrorResponse{
			Code:    "PERMISSION_DENIED",
			Message: "Unsupported principal type",
		})
	}
}
