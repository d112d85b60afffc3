package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminAuthRequired guards the operator API with a static bearer key. With no
// key configured (local development) every request is let through.
func (s *Server) AdminAuthRequired() gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(s.cfg.AdminAPIKey))
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}

		parts := strings.Fields(strings.TrimSpace(c.GetHeader("Authorization")))
		if len(parts) != 2 || parts[0] != "Bearer" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), expected) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Next()
	}
}
