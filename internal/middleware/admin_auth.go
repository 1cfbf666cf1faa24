// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"

	"agent-chat-go/internal/model"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware 检查用户是否具有管理员权限。
// 此中间件必须在 AuthMiddleware 之后使用。
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		currentUser, ok := CurrentUser(c)
		if !ok {
			// AuthMiddleware 未能成功解析用户
			abort(c, http.StatusInternalServerError, "无法获取用户信息")
			return
		}

		if currentUser.Role != model.RoleAdmin {
			abort(c, http.StatusForbidden, "权限不足，需要管理员权限")
			return
		}
		c.Next()
	}
}
