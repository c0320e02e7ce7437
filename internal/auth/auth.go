package auth

import (
	"context"
	"errors"

	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/gatherly-dev/gatherly/internal/rbac"
	"github.com/gin-gonic/gin"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is not active")
	ErrUnauthorized       = errors.New("unauthorized")
)

const (
	// UserContextKey is the key used to store the user in the Gin context
	UserContextKey = "user"
	// SubjectContextKey holds the rbac.Subject snapshot taken at authentication
	SubjectContextKey = "subject"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string       `json:"token"`
	User      *models.User `json:"user"`
	Roles     []string     `json:"roles"`
	Dashboard string       `json:"dashboard"`
}

// Authenticator is an interface for authentication providers
type Authenticator interface {
	// Login authenticates an active user and returns a JWT token
	Login(ctx context.Context, username, password string) (*LoginResponse, error)

	// Middleware returns a Gin middleware for authentication
	Middleware() gin.HandlerFunc
}

// UserFromContext extracts the authenticated user from the Gin context
func UserFromContext(c *gin.Context) (*models.User, error) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return nil, ErrUnauthorized
	}

	user, ok := value.(*models.User)
	if !ok {
		return nil, errors.New("invalid user in context")
	}

	return user, nil
}

// SubjectFromContext returns the RBAC snapshot stored by the middleware.
func SubjectFromContext(c *gin.Context) (rbac.Subject, bool) {
	value, exists := c.Get(SubjectContextKey)
	if !exists {
		return rbac.Subject{}, false
	}
	s, ok := value.(rbac.Subject)
	return s, ok
}
