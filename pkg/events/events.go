// Package events defines the message lifecycle events that are sent to Kafka.
package events

import "time"

const (
	TypeMessageSent  = "message.sent"
	TypeMessagesRead = "messages.read"
)

// MessageEvent is published after a message is stored or a conversation is read.
// Fields that do not apply to an event type are left empty.
type MessageEvent struct {
	Type               string    `json:"type"`
	MessageID          string    `json:"message_id,omitempty"`
	ConversationID     string    `json:"conversation_id"`
	SenderID           string    `json:"sender_id,omitempty"`
	RecipientID        string    `json:"recipient_id,omitempty"`
	Tone               string    `json:"tone,omitempty"`
	OriginalContent    string    `json:"original_content,omitempty"`
	TransformedContent string    `json:"transformed_content,omitempty"`
	ReaderID           string    `json:"reader_id,omitempty"`
	ReadCount          int64     `json:"read_count,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// Key 返回事件的分区键，同一会话的事件落在同一分区以保持顺序。
func (e MessageEvent) Key() string {
	return e.ConversationID
}

// DedupKey 返回用于失败计数的唯一键。
func (e MessageEvent) DedupKey() string {
	if e.MessageID != "" {
		return e.Type + ":" + e.MessageID
	}
	return e.Type + ":" + e.ConversationID + ":" + e.OccurredAt.Format(time.RFC3339Nano)
}
