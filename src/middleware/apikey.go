package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/repolens/repolens/src/services"
	"github.com/rs/zerolog/log"
)

// APIKeyHeader is the request header carrying the bearer secret
const APIKeyHeader = "x-api-key"

// authorizationKey is the context key holding the guard's decision
const authorizationKey = "api_key_authorization"

// RequireAPIKey authorizes the request through the key guard before the
// handler runs. Rejection reasons map to: 400 missing key, 401 unknown key,
// 429 usage limit crossed, 500 storage fault. Storage faults are logged with
// detail server-side and answered with a generic body.
func RequireAPIKey(guard *services.KeyGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.GetHeader(APIKeyHeader)

		auth, err := guard.Authorize(c.Request.Context(), secret)
		if err != nil {
			var rateErr *services.RateLimitError
			switch {
			case errors.Is(err, services.ErrMissingKey):
				c.JSON(http.StatusBadRequest, gin.H{
					"message": "No API key provided",
				})
			case errors.Is(err, services.ErrKeyNotFound):
				c.JSON(http.StatusUnauthorized, gin.H{
					"message": "Invalid API key. Please check your credentials and try again.",
				})
			case errors.As(err, &rateErr):
				c.JSON(http.StatusTooManyRequests, gin.H{
					"message":   "API rate limit exceeded. Please upgrade your plan or try again later.",
					"usage":     rateErr.Usage,
					"limit":     rateErr.Limit,
					"remaining": rateErr.Remaining(),
				})
			default:
				log.Error().Err(err).
					Str("request_id", GetRequestID(c)).
					Msg("API key authorization failed")
				c.JSON(http.StatusInternalServerError, gin.H{
					"message": "Error validating API key",
				})
			}
			c.Abort()
			return
		}

		c.Set(authorizationKey, auth)
		c.Next()
	}
}

// GetAuthorization retrieves the key guard's decision from context
func GetAuthorization(c *gin.Context) (*services.Authorization, bool) {
	v, exists := c.Get(authorizationKey)
	if !exists {
		return nil, false
	}
	auth, ok := v.(*services.Authorization)
	return auth, ok
}
