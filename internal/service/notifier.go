package service

import (
	"context"

	"agent-chat-go/internal/model"
	"agent-chat-go/pkg/events"
)

// Notifier 把实时事件推送给用户的在线连接。实现不应阻塞，也不返回投递错误。
type Notifier interface {
	NotifyNewMessage(ctx context.Context, recipientID string, view model.MessageView)
	NotifyMessagesRead(ctx context.Context, userID, conversationID, readerID string, count int64)
	BroadcastSystem(ctx context.Context, message string) error
}

// EventPublisher 把消息生命周期事件写入事件总线。
type EventPublisher interface {
	Publish(ctx context.Context, event events.MessageEvent) error
}

type nopNotifier struct{}

func (nopNotifier) NotifyNewMessage(context.Context, string, model.MessageView)       {}
func (nopNotifier) NotifyMessagesRead(context.Context, string, string, string, int64) {}
func (nopNotifier) BroadcastSystem(context.Context, string) error                     { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.MessageEvent) error { return nil }
