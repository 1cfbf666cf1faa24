package model

import "time"

// Conversation 对应于数据库中的 'conversations' 表。
// 每个无序用户对只有一条记录：创建时把较小的用户 ID 存入 UserAID，
// 并由 (user_a_id, user_b_id) 唯一索引保证。
type Conversation struct {
	ID            string  `gorm:"type:char(36);primaryKey" json:"id"`
	UserAID       string  `gorm:"type:char(36);not null;uniqueIndex:idx_conversation_pair,priority:1" json:"user_a_id"`
	UserBID       string  `gorm:"type:char(36);not null;uniqueIndex:idx_conversation_pair,priority:2;index" json:"user_b_id"`
	ToneA         Tone    `gorm:"type:varchar(20);not null;default:nicer" json:"tone_a"`
	CustomPromptA *string `gorm:"type:text" json:"custom_prompt_a,omitempty"`
	ToneRevA      int64   `gorm:"not null;default:0" json:"-"`
	ToneB         Tone    `gorm:"type:varchar(20);not null;default:nicer" json:"tone_b"`
	CustomPromptB *string `gorm:"type:text" json:"custom_prompt_b,omitempty"`
	ToneRevB      int64   `gorm:"not null;default:0" json:"-"`
	// LastActivityAt 单调不减，每次成功发送后更新为该消息的创建时间。
	LastActivityAt time.Time `gorm:"type:datetime(6);index;not null" json:"last_activity_at"`
	CreatedAt      time.Time `gorm:"type:datetime(6);not null" json:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Conversation) TableName() string {
	return "conversations"
}

// CanonicalPair 返回无序用户对的规范顺序（较小者在前）。
func CanonicalPair(u1, u2 string) (string, string) {
	if u2 < u1 {
		return u2, u1
	}
	return u1, u2
}

// HasParticipant 判断用户是否为会话参与者。
func (c *Conversation) HasParticipant(userID string) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// OtherParticipant 返回会话中另一方的用户 ID；userID 不是参与者时返回 false。
func (c *Conversation) OtherParticipant(userID string) (string, bool) {
	switch userID {
	case c.UserAID:
		return c.UserBID, true
	case c.UserBID:
		return c.UserAID, true
	}
	return "", false
}

// ToneFor 返回 userID 所在槽位的语气配置和槽位版本号。
func (c *Conversation) ToneFor(userID string) (ToneConfig, int64, bool) {
	switch userID {
	case c.UserAID:
		return ToneConfig{Tone: c.ToneA, Custom: deref(c.CustomPromptA)}, c.ToneRevA, true
	case c.UserBID:
		return ToneConfig{Tone: c.ToneB, Custom: deref(c.CustomPromptB)}, c.ToneRevB, true
	}
	return ToneConfig{}, 0, false
}

// ApplyTone 修改 userID 所在槽位的语气并递增版本号。
// 仅当 tone 为 custom 时才覆盖该槽位保存的自定义提示。
func (c *Conversation) ApplyTone(userID string, tone Tone, custom *string) bool {
	switch userID {
	case c.UserAID:
		c.ToneA = tone
		if tone == ToneCustom {
			c.CustomPromptA = custom
		}
		c.ToneRevA++
	case c.UserBID:
		c.ToneB = tone
		if tone == ToneCustom {
			c.CustomPromptB = custom
		}
		c.ToneRevB++
	default:
		return false
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ConversationSummary 是会话列表中返回给某一参与者的视图。
type ConversationSummary struct {
	ID             string       `json:"id"`
	OtherUser      UserRef      `json:"other_user"`
	LastMessage    *LastMessage `json:"last_message"`
	UnreadCount    int64        `json:"unread_count"`
	MyAgentTone    Tone         `json:"my_agent_tone"`
	MyCustomPrompt *string      `json:"my_custom_prompt"`
	LastActivityAt time.Time    `json:"last_activity_at"`
}

// LastMessage 是会话列表中最近一条消息的摘要。
type LastMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsMine    bool      `json:"is_mine"`
}
