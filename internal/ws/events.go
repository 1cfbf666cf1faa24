// Package ws 管理实时推送：连接注册表、WebSocket 客户端与跨实例分发。
package ws

import (
	"encoding/json"
	"time"

	"agent-chat-go/internal/model"
)

// 客户端 -> 服务端
const (
	EventTypePing     = "ping"
	EventTypeMarkRead = "mark_read"
)

// 服务端 -> 客户端
const (
	EventTypeMessageNew   = "message.new"
	EventTypeMessagesRead = "messages.read"
	EventTypeSystem       = "system"
	EventTypePong         = "pong"
	EventTypeError        = "error"
)

// Event 是所有 WebSocket 消息的统一信封。
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

type MarkReadPayload struct {
	ConversationID string `json:"conversation_id"`
}

type MessageNewPayload struct {
	ConversationID string            `json:"conversation_id"`
	Message        model.MessageView `json:"message"`
}

type MessagesReadPayload struct {
	ConversationID string `json:"conversation_id"`
	ReaderID       string `json:"reader_id"`
	Count          int64  `json:"count"`
}

type SystemPayload struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent 构造一个带当前时间戳的服务端事件并编码为 JSON。
func NewEvent(eventType string, payload interface{}) ([]byte, error) {
	evt := Event{Type: eventType, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		evt.Payload = data
	}
	return json.Marshal(evt)
}
