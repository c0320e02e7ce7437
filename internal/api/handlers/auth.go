package handlers

import (
	"errors"
	"net/http"

	"github.com/gatherly-dev/gatherly/internal/auth"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/gatherly-dev/gatherly/internal/rbac"
	"github.com/gatherly-dev/gatherly/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuthHandler serves registration, activation, login and the caller's profile.
type AuthHandler struct {
	directory     *service.DirectoryService
	authenticator auth.Authenticator
}

func NewAuthHandler(directory *service.DirectoryService, authenticator auth.Authenticator) *AuthHandler {
	return &AuthHandler{directory: directory, authenticator: authenticator}
}

// RegisterRequest is the sign-up body
type RegisterRequest struct {
	Username        string `json:"username" binding:"required,notblank,max=150"`
	Email           string `json:"email" binding:"required,email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
}

// UpdateProfileRequest edits the caller's profile; omitted fields are unchanged
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email" binding:"omitempty,email"`
}

// ChangePasswordRequest replaces the caller's password
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// MeResponse describes the caller and what it may do
type MeResponse struct {
	User      *models.User     `json:"user"`
	Roles     []rbac.RoleGrant `json:"roles"`
	Dashboard string           `json:"dashboard"`
}

// Register godoc
// @Summary Register a new account
// @Description Creates an inactive account and sends an activation link
// @Tags auth
// @Accept json
// @Produce json
// @Param user body RegisterRequest true "Account details"
// @Success 201 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	user, err := h.directory.Register(c.Request.Context(), service.RegisterRequest{
		Username:        req.Username,
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Activate godoc
// @Summary Activate an account
// @Tags auth
// @Produce json
// @Param id path string true "User UUID"
// @Param token path string true "Activation token"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Router /auth/activate/{id}/{token} [post]
func (h *AuthHandler) Activate(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid or expired activation link"})
		return
	}

	if _, err := h.directory.Activate(c.Request.Context(), userID, c.Param("token")); err != nil {
		// Unknown users look like bad links.
		if errors.Is(err, service.ErrNotFound) {
			err = service.ErrInvalidToken
		}
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Thank you for confirming your account. You can now log in."})
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body auth.LoginRequest true "Login credentials"
// @Success 200 {object} auth.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	resp, err := h.authenticator.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		case errors.Is(err, auth.ErrInactiveAccount):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Me godoc
// @Summary Get the current user with roles and dashboard
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} MeResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	subject, _ := auth.SubjectFromContext(c)
	c.JSON(http.StatusOK, MeResponse{
		User:      user,
		Roles:     subject.Roles,
		Dashboard: rbac.DashboardFor(subject),
	})
}

// UpdateMe godoc
// @Summary Update the current user's profile
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param profile body UpdateProfileRequest true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Router /auth/me [put]
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	updated, err := h.directory.UpdateProfile(c.Request.Context(), user.ID, service.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// ChangePassword godoc
// @Summary Change the current user's password
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param body body ChangePasswordRequest true "Old and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Router /auth/password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.directory.ChangePassword(c.Request.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Password changed"})
}

// MyDashboard godoc
// @Summary Which dashboard applies to the current user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /me/dashboard [get]
func (h *AuthHandler) MyDashboard(c *gin.Context) {
	subject, ok := auth.SubjectFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dashboard": rbac.DashboardFor(subject)})
}
