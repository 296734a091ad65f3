package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Identity headers set by the edge proxy after it authenticates the request.
// This service trusts them verbatim.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"

	roleAdmin = "admin"

	ctxUserID = "userID"
	ctxRole   = "userRole"
)

// RequireUser rejects requests without an authenticated user identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(headerUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(ctxUserID, userID)
		c.Set(ctxRole, c.GetHeader(headerUserRole))
		c.Next()
	}
}

// RequireAdmin rejects requests whose identity does not carry the admin role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != roleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) string { return c.GetString(ctxUserID) }

func isAdmin(c *gin.Context) bool { return c.GetString(ctxRole) == roleAdmin }
