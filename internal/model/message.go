package model

import "time"

// MessageStatus 只会向前推进：sent -> delivered -> read。
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// Message 对应于数据库中的 'messages' 表。
// 创建后只有 IsRead 与 Status 可以改变。
type Message struct {
	ID                 string        `gorm:"type:char(36);primaryKey" json:"id"`
	ConversationID     string        `gorm:"type:char(36);not null;index:idx_message_conv_created,priority:1" json:"conversation_id"`
	SenderID           string        `gorm:"type:char(36);not null;index" json:"sender_id"`
	OriginalContent    string        `gorm:"type:text;not null" json:"original_content"`
	TransformedContent string        `gorm:"type:text;not null" json:"transformed_content"`
	CreatedAt          time.Time     `gorm:"type:datetime(6);not null;index:idx_message_conv_created,priority:2" json:"timestamp"`
	IsRead             bool          `gorm:"not null;default:false" json:"is_read"`
	Status             MessageStatus `gorm:"type:varchar(20);not null;default:sent" json:"status"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Message) TableName() string {
	return "messages"
}

// MessageView 是返回给某位查看者的消息视图。
type MessageView struct {
	Message
	SenderUsername string `json:"sender_username"`
	IsMine         bool   `json:"is_mine"`
}
