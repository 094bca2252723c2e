// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ai-credit-gateway/internal/domain/entity"
	"ai-credit-gateway/pkg/logger"
	"ai-credit-gateway/pkg/utils"
)

// AuthConfig 认证中间件配置
type AuthConfig struct {
	// Secret JWT 密钥
	Secret string
	// Issuer 令牌签发者
	Issuer string
	// SkipPaths 跳过认证的路径
	SkipPaths []string
	// Enabled 是否启用认证
	Enabled bool
}

// UserResolver 将令牌里的邮箱解析为用户实体
type UserResolver interface {
	ResolveByEmail(ctx context.Context, email string) (*entity.User, error)
}

// Auth JWT 认证中间件：校验 Bearer Token，解析出用户并注入上下文。
// 用户在首次认证请求时惰性创建。
func Auth(cfg AuthConfig, resolver UserResolver) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	jwtManager := utils.NewJWTManager(cfg.Secret, cfg.Issuer)
	skipPaths := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := jwtManager.ParseToken(parts[1])
		if err != nil {
			if err == utils.ErrExpiredToken {
				abortUnauthorized(c, "token expired")
				return
			}
			abortUnauthorized(c, "invalid token")
			return
		}

		// 只接受访问令牌
		if claims.Type != "access" {
			abortUnauthorized(c, "invalid token type")
			return
		}

		user, err := resolver.ResolveByEmail(c.Request.Context(), claims.Email)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"code":     http.StatusServiceUnavailable,
				"message":  "failed to resolve user identity",
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user_email", user.Email)
		c.Set("role", claims.Role)

		ctx := logger.WithContext(c.Request.Context(), logger.UserIDKey, user.ID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// abortUnauthorized 中止请求并返回 401
func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":     http.StatusUnauthorized,
		"message":  message,
		"trace_id": c.GetString("trace_id"),
	})
}
