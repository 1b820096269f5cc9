package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/seolens/seolens/models"
)

// Auth returns API-key middleware for the /api/v1 group. Clients present
// their key either way:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// With no keys configured the API is open and the middleware is a no-op.
// Key comparison is constant-time so response timing does not leak how
// much of a guessed key matched.
func Auth(apiKeys []string) gin.HandlerFunc {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := presentedKey(c)
		switch {
		case key == "":
			unauthorized(c, "missing API key: provide X-API-Key header or Authorization: Bearer <key>")
		case !keyMatches(key, keys):
			unauthorized(c, "invalid API key")
		default:
			// Recorded so the rate limiter can bucket by key instead of IP.
			c.Set("api_key", key)
			c.Next()
		}
	}
}

// presentedKey reads the client key, preferring X-API-Key over the
// Authorization header.
func presentedKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func keyMatches(presented string, keys [][]byte) bool {
	p := []byte(presented)
	for _, k := range keys {
		if subtle.ConstantTimeCompare(p, k) == 1 {
			return true
		}
	}
	return false
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.AuditResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeUnauthorized,
			Message: msg,
		},
	})
}
