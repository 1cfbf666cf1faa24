// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"strings"

	apperrors "agent-chat-go/pkg/errors"
	"agent-chat-go/pkg/log"
)

// ConnectionCounter 报告本实例上的在线连接数，由 ws.Registry 实现。
type ConnectionCounter interface {
	Count() int
	Users() int
}

// ConnectionStats 是管理员查看的连接统计。
type ConnectionStats struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
}

// AdminService 接口定义了所有管理员相关的业务操作。
type AdminService interface {
	Broadcast(ctx context.Context, adminID, message string) error
	ConnectionStats() ConnectionStats
}

type adminService struct {
	notifier Notifier
	counter  ConnectionCounter
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(notifier Notifier, counter ConnectionCounter) AdminService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &adminService{notifier: notifier, counter: counter}
}

// Broadcast 向所有在线连接推送一条系统通知。
func (s *adminService) Broadcast(ctx context.Context, adminID, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return apperrors.InvalidArg("broadcast message is required")
	}
	if err := s.notifier.BroadcastSystem(ctx, message); err != nil {
		return apperrors.ErrInternal("failed to broadcast", err)
	}
	log.Infow("system broadcast sent", "adminId", adminID, "connections", s.ConnectionStats().Connections)
	return nil
}

func (s *adminService) ConnectionStats() ConnectionStats {
	if s.counter == nil {
		return ConnectionStats{}
	}
	return ConnectionStats{Connections: s.counter.Count(), Users: s.counter.Users()}
}
