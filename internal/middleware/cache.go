package middleware

import (
	"github.com/gin-gonic/gin"
)

// PrivateNoStore marks per-candidate responses (exam payloads, results,
// profile skills) as uncacheable. Bodies vary with the bearer token.
func PrivateNoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Cache-Control", "no-store, private")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		h.Add("Vary", "Authorization")
		c.Next()
	}
}
