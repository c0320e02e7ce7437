// Package middleware gates routes on the RBAC snapshot the auth middleware stored.
package middleware

import (
	"net/http"

	"github.com/gatherly-dev/gatherly/internal/auth"
	"github.com/gatherly-dev/gatherly/internal/rbac"
	"github.com/gin-gonic/gin"
)

// RequirePermission lets the request through only when the subject holds perm.
func RequirePermission(perm string) gin.HandlerFunc {
	return gate(func(s rbac.Subject) bool { return rbac.HasPermission(s, perm) }, "Permission denied")
}

// RequireRole lets the request through only when the subject holds the named role.
func RequireRole(name string) gin.HandlerFunc {
	return gate(func(s rbac.Subject) bool { return rbac.HasRole(s, name) }, "Role "+name+" required")
}

func gate(allowed func(rbac.Subject) bool, denied string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := auth.SubjectFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		if !subject.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"error": auth.ErrInactiveAccount.Error()})
			c.Abort()
			return
		}

		if !allowed(subject) {
			c.JSON(http.StatusForbidden, gin.H{"error": denied})
			c.Abort()
			return
		}

		c.Next()
	}
}
