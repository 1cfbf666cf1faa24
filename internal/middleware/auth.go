// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"context"
	"net/http"
	"strings"

	"agent-chat-go/internal/model"
	"agent-chat-go/pkg/log"
	"agent-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// 存入 gin.Context 的键
const (
	ContextUserKey   = "user"
	ContextClaimsKey = "claims"
)

// ProfileLoader 根据用户 ID 读取用户。
type ProfileLoader interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
}

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 它会从请求头中提取 token，验证其有效性，并将完整的 User 对象存入 Gin 的上下文中。
func AuthMiddleware(jwtManager *token.JWTManager, users ProfileLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "请求未包含授权头")
			return
		}

		// Token 以 "Bearer <token>" 的形式提供
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			abort(c, http.StatusUnauthorized, "无效的授权头格式")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			log.Debugf("token 验证失败: %v", err)
			abort(c, http.StatusUnauthorized, "无效或已过期的 token")
			return
		}

		user, err := users.GetProfile(c.Request.Context(), claims.UserID)
		if err != nil {
			// 用户可能已被删除
			abort(c, http.StatusUnauthorized, "用户不存在")
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// CurrentUser 返回 AuthMiddleware 存入的用户。
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": message, "data": nil})
}
