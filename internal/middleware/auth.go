package middleware

import (
	"strings"

	"github.com/chachabrian/shupool-backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

// Context keys set for authenticated requests.
const (
	UserIDKey   = "userId"
	UserTypeKey = "userType"
)

func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			c.JSON(401, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		claims, err := utils.Authenticate(tokenString, secret)
		if err != nil {
			c.JSON(401, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserTypeKey, string(claims.UserType))
		c.Next()
	}
}
