// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"agent-chat-go/internal/service"

	"github.com/gin-gonic/gin"
)

// UserHandler 负责处理用户目录相关的 API 请求。
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// ListUsers 返回除当前用户以外的所有用户。
func (h *UserHandler) ListUsers(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	users, err := h.userService.ListOthers(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, users)
}

// GetProfile 返回当前用户的信息。
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	success(c, user)
}
