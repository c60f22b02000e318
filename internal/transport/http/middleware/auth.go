// Package middleware file: internal/transport/http/middleware/auth.go
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"ExoGate/internal/core/domain"
	"ExoGate/internal/service"

	"github.com/gin-gonic/gin"
)

// TokenCookie 保存访问令牌的 cookie 名
const TokenCookie = "access_token"

// TokenParser 校验访问令牌
type TokenParser interface {
	ParseToken(token string) (*service.Claim, error)
}

// RoleResolver 查询用户当前角色，令牌中的角色可能已过时
type RoleResolver interface {
	RoleOf(ctx context.Context, userID string) (string, error)
}

// tokenFrom 优先读取 cookie，其次读取 Authorization: Bearer
func tokenFrom(c *gin.Context) string {
	if token, err := c.Cookie(TokenCookie); err == nil && token != "" {
		return token
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func withClaim(c *gin.Context, claims *service.Claim) {
	c.Request = c.Request.WithContext(service.ContextWithClaim(c.Request.Context(), claims))
}

// RequireUser 要求有效令牌。缺少令牌 401，令牌无效 403；两种情况都不会进入处理器。
func RequireUser(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFrom(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		claims, err := parser.ParseToken(token)
		if err != nil {
			slog.Debug("RequireUser: 令牌无效", "path", c.Request.URL.Path, "ip", c.ClientIP(), "error", err)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		withClaim(c, claims)
		c.Next()
	}
}

// RequireAdmin 要求有效令牌且用户当前角色为 admin。角色以存储为准，而不是令牌中的声明。
func RequireAdmin(parser TokenParser, roles RoleResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFrom(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		claims, err := parser.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid token"})
			return
		}
		role, err := roles.RoleOf(c.Request.Context(), claims.ID)
		if err != nil || role != domain.RoleAdmin {
			slog.Warn("RequireAdmin: 访问被拒绝", "user_id", claims.ID, "role", role, "path", c.Request.URL.Path, "ip", c.ClientIP(), "error", err)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden. Admin only."})
			return
		}
		claims.Role = role
		withClaim(c, claims)
		c.Next()
	}
}
