package middleware

import (
	"errors"
	"log"
	"net/http"
	"schoolchat/services"
	"strings"

	"github.com/gin-gonic/gin"
)

// bearerToken достает токен из Authorization: Bearer ... или из ?token=
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return c.Query("token")
}

// AuthMiddleware кладет в контекст user_id проверенного пользователя
func AuthMiddleware(auth services.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		userID, err := auth.Authenticate(c.Request.Context(), token)
		if errors.Is(err, services.ErrAuthenticationFailed) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		if err != nil {
			log.Printf("ERROR auth: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication unavailable"})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
