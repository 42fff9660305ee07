package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/victoralfred/authz_sys/internal/domain/identity"
	"github.com/victoralfred/authz_sys/internal/domain/rbac"
	"github.com/victoralfred/authz_sys/internal/middleware"
	"github.com/victoralfred/authz_sys/internal/services"
)

// RouterConfig carries the collaborators the HTTP surface needs
type RouterConfig struct {
	Resolver     *services.PrincipalResolver
	Engine       *services.AuthorizationService
	Directory    *services.DirectoryService
	GrantAdmin   *services.GrantService
	Identity     *services.IdentityService
	IdentityRepo identity.Repository
	Grants       rbac.GrantRepository

	// AllowedOrigins for CORS; empty means same-origin only
	AllowedOrigins []string
}

// NewRouter assembles the gin engine. Every route under /v1 requires an
// authenticated principal; directory routes additionally require the
// matching read permission and admin routes the matching write permission.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	directoryHandler := NewDirectoryHandler(cfg.Directory)
	authzHandler := NewAuthorizationHandler(cfg.Engine)

	v1 := router.Group("/v1")
	v1.Use(middleware.Authenticate(cfg.Resolver))
	v1.Use(middleware.WithLoaders(cfg.IdentityRepo, cfg.Grants))

	authz := v1.Group("/authz")
	{
		authz.POST("/check", authzHandler.Check)
		authz.GET("/permissions", authzHandler.MyPermissions)
	}

	directory := v1.Group("/directory")
	{
		directory.GET("/users",
			middleware.RequirePermission(rbac.PermissionUserRead, cfg.Engine),
			directoryHandler.ListUsers)
		directory.GET("/groups",
			middleware.RequirePermission(rbac.PermissionGroupRead, cfg.Engine),
			directoryHandler.ListGroups)
		directory.GET("/roles",
			middleware.RequirePermission(rbac.PermissionRoleRead, cfg.Engine),
			directoryHandler.ListRoles)
		directory.GET("/permissions",
			middleware.RequirePermission(rbac.PermissionPermissionRead, cfg.Engine),
			directoryHandler.ListPermissions)
	}

	adminHandler := NewAdminHandler(cfg.GrantAdmin, cfg.Identity)
	admin := v1.Group("/admin")
	{
		admin.POST("/roles",
			middleware.RequirePermission(rbac.PermissionRoleWrite, cfg.Engine),
			adminHandler.CreateRole)
		admin.POST("/roles/:id/permissions",
			middleware.RequirePermission(rbac.PermissionRoleWrite, cfg.Engine),
			adminHandler.LinkPermission)
		admin.DELETE("/roles/:id/permissions/:permissionID",
			middleware.RequirePermission(rbac.PermissionRoleWrite, cfg.Engine),
			adminHandler.UnlinkPermission)

		admin.POST("/permissions",
			middleware.RequirePermission(rbac.PermissionPermissionWrite, cfg.Engine),
			adminHandler.CreatePermission)

		admin.POST("/users/:id/roles",
			middleware.RequirePermission(rbac.PermissionUserWrite, cfg.Engine),
			adminHandler.AssignRole)
		admin.DELETE("/users/:id/roles/:roleID",
			middleware.RequirePermission(rbac.PermissionUserWrite, cfg.Engine),
			adminHandler.RevokeRole)

		admin.POST("/groups",
			middleware.RequirePermission(rbac.PermissionGroupWrite, cfg.Engine),
			adminHandler.CreateGroup)
		admin.POST("/groups/:id/roles",
			middleware.RequirePermission(rbac.PermissionGroupWrite, cfg.Engine),
			adminHandler.AssignGroupRole)
		admin.DELETE("/groups/:id/roles/:roleID",
			middleware.RequirePermission(rbac.PermissionGroupWrite, cfg.Engine),
			adminHandler.RevokeGroupRole)
		admin.POST("/groups/:id/members",
			middleware.RequirePermission(rbac.PermissionGroupWrite, cfg.Engine),
			adminHandler.AddGroupMember)
		admin.DELETE("/groups/:id/members/:userID",
			middleware.RequirePermission(rbac.PermissionGroupWrite, cfg.Engine),
			adminHandler.RemoveGroupMember)
	}

	return router
}
