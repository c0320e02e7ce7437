package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gatherly-dev/gatherly/internal/audit"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/gatherly-dev/gatherly/internal/rbac"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultTokenDuration is the validity period for session tokens
const DefaultTokenDuration = 24 * time.Hour

// BasicAuthenticator implements username/password authentication with JWT sessions
type BasicAuthenticator struct {
	db        *gorm.DB
	policy    *rbac.Policy
	jwtSecret []byte
	ttl       time.Duration
}

// NewBasicAuthenticator creates a new basic authenticator
func NewBasicAuthenticator(db *gorm.DB, policy *rbac.Policy, jwtSecret string, ttl time.Duration) *BasicAuthenticator {
	if ttl <= 0 {
		ttl = DefaultTokenDuration
	}
	return &BasicAuthenticator{
		db:        db,
		policy:    policy,
		jwtSecret: []byte(jwtSecret),
		ttl:       ttl,
	}
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"` // UUID stored as string
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Login authenticates an active user and returns a JWT token
func (a *BasicAuthenticator) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var user models.User
	result := a.db.WithContext(ctx).Where("username = ?", username).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			slog.Warn("Login attempt with non-existent username", "username", username)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	if !VerifyPassword(user.PasswordHash, password) {
		slog.Warn("Login attempt with incorrect password", "username", username)
		audit.LogAction(a.db, user.ID, audit.ActionLoginFailed, "user:"+user.ID.String(), nil)
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		slog.Warn("Login attempt on inactive account", "username", username)
		return nil, ErrInactiveAccount
	}

	now := time.Now().UTC()
	if err := a.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		slog.Warn("Failed to record last login", "user_id", user.ID, "error", err)
	}

	token, err := a.generateToken(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	subject, err := a.policy.Snapshot(&user)
	if err != nil {
		return nil, err
	}

	audit.LogAction(a.db, user.ID, audit.ActionLogin, "user:"+user.ID.String(), nil)
	slog.Info("User logged in successfully", "user_id", user.ID, "username", user.Username)
	return &LoginResponse{
		Token:     token,
		User:      &user,
		Roles:     subject.RoleNames(),
		Dashboard: rbac.DashboardFor(subject),
	}, nil
}

// generateToken creates a JWT token for a user
func (a *BasicAuthenticator) generateToken(user *models.User) (string, error) {
	claims := Claims{
		UserID:   user.ID.String(),
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "gatherly",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// validateToken validates a JWT token and returns claims
func (a *BasicAuthenticator) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrUnauthorized
}

// Middleware returns a Gin middleware for authentication.
// It resolves the bearer token to an active user and snapshots the user's roles.
func (a *BasicAuthenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		user, err := a.validateAndLoadUser(c.Request.Context(), parts[1])
		if err != nil {
			slog.Warn("Invalid token", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		if !user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"error": ErrInactiveAccount.Error()})
			c.Abort()
			return
		}

		subject, err := a.policy.Snapshot(user)
		if err != nil {
			slog.Error("Failed to load roles", "user_id", user.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			c.Abort()
			return
		}

		c.Set(UserContextKey, user)
		c.Set(SubjectContextKey, subject)
		c.Next()
	}
}

// validateAndLoadUser validates a session JWT and loads the user from the database.
func (a *BasicAuthenticator) validateAndLoadUser(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := a.validateToken(tokenString)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in token: %w", err)
	}

	var user models.User
	if err := a.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	return &user, nil
}

// IssueToken signs a session token without a password check. Used by tests and the CLI.
func (a *BasicAuthenticator) IssueToken(user *models.User) (string, error) {
	return a.generateToken(user)
}
