package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/avolkov/filevault/internal/logging"
	"github.com/avolkov/filevault/internal/server/auth"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// principal returns the authenticated user id placed into the context by
// the auth middleware.
func principal(c *gin.Context) string {
	return c.GetString(principalKey)
}

// authMiddleware verifies the Bearer token and stores the principal id for
// the handlers downstream.
func authMiddleware(secretKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := auth.PrincipalFromToken(token, secretKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(principalKey, userID)
		c.Next()
	}
}

// requestLogger logs one line per request with method, path, status and
// latency.
func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
