package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// RoleBasedAuthMiddleware admits tokens whose backend role is one of roles.
// It must run after JWTAuthMiddleware.
func RoleBasedAuthMiddleware(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Insufficient authorization"})
			return
		}
		if !slices.Contains(roles, claims.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Access denied"})
			return
		}
		c.Next()
	}
}
