package middleware

import (
	"net/http"
	"strings"

	"rwandabill/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ClaimsKey is the gin context key of the validated *utils.AccessClaims.
const ClaimsKey = "claims"

// JWTAuthMiddleware validates the bearer access token and stores its claims.
func JWTAuthMiddleware(issuer *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Missing or invalid Authorization header"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := issuer.ValidateToken(tokenString)
		if err != nil {
			LoggerFrom(c).Debug("rejected access token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid token"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// CurrentClaims returns the claims stored by JWTAuthMiddleware.
func CurrentClaims(c *gin.Context) (*utils.AccessClaims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.AccessClaims)
	return claims, ok
}
