package ws

import (
	"context"
	"encoding/json"

	"agent-chat-go/internal/model"
	"agent-chat-go/pkg/log"
)

// Envelope 是一次推送：发给 UserID 的全部连接，UserID 为空时广播。
// MessageID 非空时，本地至少一个连接接收后会触发送达回调。
type Envelope struct {
	UserID    string          `json:"user_id,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// Publisher 把推送转发给所有实例（例如 Redis pub/sub）。
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// HubNotifier 基于连接注册表实现 service.Notifier。
type HubNotifier struct {
	registry    *Registry
	publisher   Publisher
	onDelivered func(ctx context.Context, messageID string)
}

func NewHubNotifier(registry *Registry) *HubNotifier {
	return &HubNotifier{registry: registry}
}

// UsePublisher 让推送先经过跨实例分发，再由各实例在本地投递。
func (n *HubNotifier) UsePublisher(p Publisher) {
	n.publisher = p
}

// OnDelivered 设置消息被本地连接接收后的回调。
func (n *HubNotifier) OnDelivered(fn func(ctx context.Context, messageID string)) {
	n.onDelivered = fn
}

func (n *HubNotifier) NotifyNewMessage(ctx context.Context, recipientID string, view model.MessageView) {
	data, err := NewEvent(EventTypeMessageNew, MessageNewPayload{ConversationID: view.ConversationID, Message: view})
	if err != nil {
		log.Errorf("ws notifier: marshal error: %v", err)
		return
	}
	n.dispatch(ctx, Envelope{UserID: recipientID, MessageID: view.ID, Data: data})
}

func (n *HubNotifier) NotifyMessagesRead(ctx context.Context, userID, conversationID, readerID string, count int64) {
	data, err := NewEvent(EventTypeMessagesRead, MessagesReadPayload{
		ConversationID: conversationID,
		ReaderID:       readerID,
		Count:          count,
	})
	if err != nil {
		log.Errorf("ws notifier: marshal error: %v", err)
		return
	}
	n.dispatch(ctx, Envelope{UserID: userID, Data: data})
}

// BroadcastSystem 向所有连接推送一条系统通知。
func (n *HubNotifier) BroadcastSystem(ctx context.Context, message string) error {
	data, err := NewEvent(EventTypeSystem, SystemPayload{Message: message})
	if err != nil {
		return err
	}
	n.dispatch(ctx, Envelope{Data: data})
	return nil
}

func (n *HubNotifier) dispatch(ctx context.Context, env Envelope) {
	if n.publisher != nil {
		err := n.publisher.Publish(ctx, env)
		if err == nil {
			return
		}
		log.Warnw("fanout publish failed, delivering locally", "userId", env.UserID, "error", err)
	}
	n.Deliver(ctx, env)
}

// Deliver 把推送投递给本实例上的连接，返回接收的连接数。
func (n *HubNotifier) Deliver(ctx context.Context, env Envelope) int {
	var delivered int
	if env.UserID == "" {
		delivered = n.registry.Broadcast(env.Data)
	} else {
		delivered = n.registry.Notify(env.UserID, env.Data)
	}
	if delivered > 0 && env.MessageID != "" && n.onDelivered != nil {
		n.onDelivered(ctx, env.MessageID)
	}
	return delivered
}
