package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware 管理密钥验证中间件
// 校验 Authorization: Bearer <admin_key>；adminKey 为空时不做校验
func AdminAuthMiddleware(adminKey string) gin.HandlerFunc {
	expected := []byte(adminKey)

	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "MISSING_AUTH_HEADER", "Missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			abortUnauthorized(c, "INVALID_AUTH_FORMAT", "Invalid authorization format. Expected: Bearer <token>")
			return
		}

		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(parts[1])), expected) != 1 {
			abortUnauthorized(c, "INVALID_TOKEN", "Invalid admin key")
			return
		}

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
