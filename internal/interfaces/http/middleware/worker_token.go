// Package middleware 提供 HTTP 中间件
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WorkerToken 内部端点守卫：校验共享工作令牌。
// 令牌校验发生在任何存储访问之前，未配置令牌时内部端点整体关闭。
func WorkerToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"code":     http.StatusServiceUnavailable,
				"message":  "internal endpoints are not configured",
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		got := c.GetHeader("X-Worker-Token")
		if got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":     http.StatusUnauthorized,
				"message":  "missing worker token",
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":     http.StatusForbidden,
				"message":  "invalid worker token",
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}
