package handlers

import (
	"net/http"
	"strconv"

	"github.com/gatherly-dev/gatherly/internal/audit"
	"github.com/gatherly-dev/gatherly/internal/auth"
	"github.com/gatherly-dev/gatherly/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AdminHandler struct {
	db    *gorm.DB
	roles *service.RoleService
}

func NewAdminHandler(db *gorm.DB, roles *service.RoleService) *AdminHandler {
	return &AdminHandler{db: db, roles: roles}
}

// AssignRoleRequest names the single role the target will hold
type AssignRoleRequest struct {
	Role string `json:"role" binding:"required,notblank"`
}

// CreateRoleRequest defines a new role; permissions may be empty
type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required,notblank"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// ListUsers godoc
// @Summary List all users with their roles (admin only)
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param role query string false "Only users holding this role"
// @Success 200 {array} service.UserWithRoles
// @Failure 404 {object} ErrorResponse
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.roles.ListUsers(c.Request.Context(), c.Query("role"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// AssignRole godoc
// @Summary Replace a user's roles with exactly one role (admin only)
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "User UUID"
// @Param body body AssignRoleRequest true "Role"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/users/{id}/role [post]
func (h *AdminHandler) AssignRole(c *gin.Context) {
	actor, ok := auth.SubjectFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid user ID"})
		return
	}

	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.roles.AssignRole(c.Request.Context(), actor, targetID, req.Role); err != nil {
		handleServiceError(c, err)
		return
	}

	roles, err := h.roles.RolesOf(targetID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": targetID, "roles": roles})
}

// ListRoles godoc
// @Summary List roles with their permissions (admin only)
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Role
// @Router /admin/roles [get]
func (h *AdminHandler) ListRoles(c *gin.Context) {
	roles, err := h.roles.ListRoles(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

// CreateRole godoc
// @Summary Create a role (admin only)
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param role body CreateRoleRequest true "Role"
// @Success 201 {object} models.Role
// @Failure 400 {object} ErrorResponse
// @Router /admin/roles [post]
func (h *AdminHandler) CreateRole(c *gin.Context) {
	actor, ok := auth.SubjectFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	role, err := h.roles.CreateRole(c.Request.Context(), actor, req.Name, req.Description, req.Permissions)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, role)
}

// ListPermissions godoc
// @Summary List the permission catalog (admin only)
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Permission
// @Router /admin/permissions [get]
func (h *AdminHandler) ListPermissions(c *gin.Context) {
	perms, err := h.roles.ListPermissions(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, perms)
}

// ListAuditLogs godoc
// @Summary Recent audit log entries (admin only)
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Maximum entries" default(100)
// @Success 200 {array} models.AuditLog
// @Router /admin/audit-logs [get]
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := audit.Recent(h.db.WithContext(c.Request.Context()), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch audit logs"})
		return
	}
	c.JSON(http.StatusOK, logs)
}
