// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"agent-chat-go/internal/service"
	"agent-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理所有与管理员相关的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// BroadcastRequest 定义了系统广播 API 的请求体结构。
type BroadcastRequest struct {
	Message string `json:"message" binding:"required"`
}

// Broadcast 向所有在线连接推送系统通知。
func (h *AdminHandler) Broadcast(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		return
	}
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Broadcast: Invalid request payload, error: %v", err)
		badRequest(c, "无效的请求负载：message 不能为空")
		return
	}
	if err := h.adminService.Broadcast(c.Request.Context(), admin.ID, req.Message); err != nil {
		fail(c, err)
		return
	}
	success(c, h.adminService.ConnectionStats())
}

// Connections 返回本实例的连接统计。
func (h *AdminHandler) Connections(c *gin.Context) {
	success(c, h.adminService.ConnectionStats())
}
