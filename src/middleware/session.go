package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/repolens/repolens/src/services"
)

// OwnerIDKey is the context key holding the authenticated owner's id
const OwnerIDKey = "owner_id"

// SessionCookieName is the cookie the dashboard stores its session token in
const SessionCookieName = "session_token"

// SessionAuthMiddleware validates the session JWT from the cookie or the
// Authorization header and stores the resolved owner id in the context.
// Handlers read the owner id via GetOwnerID and never touch session state.
func SessionAuthMiddleware(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string

		// Cookie first, Authorization header as fallback for API clients
		if cookie, err := c.Cookie(SessionCookieName); err == nil {
			token = cookie
		}
		if token == "" {
			authHeader := c.GetHeader("Authorization")
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}

		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized: You must be signed in to access this endpoint",
			})
			c.Abort()
			return
		}

		ownerID, err := authService.VerifySessionToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired session",
			})
			c.Abort()
			return
		}

		c.Set(OwnerIDKey, ownerID)
		c.Next()
	}
}

// GetOwnerID retrieves the authenticated owner id from context
func GetOwnerID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(OwnerIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
