package repository

import (
	"context"
	"fmt"
	"time"

	"agent-chat-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository 定义了消息的持久化与已读状态操作。
type MessageRepository interface {
	// Append 在一个事务内锁定会话行、校验发送者及其语气版本、写入消息并更新会话活跃时间。
	// msg.CreatedAt 由仓库在事务内决定。
	Append(ctx context.Context, msg *model.Message, expectedToneRev int64) error
	FindByID(ctx context.Context, id string) (*model.Message, error)
	// ListByConversation 按创建时间升序返回会话中的全部消息。
	ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error)
	// LatestByConversations 返回每个会话最近的一条消息。
	LatestByConversations(ctx context.Context, conversationIDs []string) (map[string]model.Message, error)
	// CountUnread 统计每个会话中发送者不是 userID 且未读的消息数。
	CountUnread(ctx context.Context, conversationIDs []string, userID string) (map[string]int64, error)
	// MarkRead 把会话中发送者不是 readerID 的未读消息全部标记为已读，返回受影响条数。
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
	// MarkDelivered 把状态从 sent 推进为 delivered，其余状态不变。
	MarkDelivered(ctx context.Context, messageID string) (bool, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Append 写入一条新消息。
func (r *messageRepository) Append(ctx context.Context, msg *model.Message, expectedToneRev int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv model.Conversation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", msg.ConversationID).
			First(&conv).Error; err != nil {
			return translate(err)
		}

		_, rev, ok := conv.ToneFor(msg.SenderID)
		if !ok {
			return ErrNotParticipant
		}
		if rev != expectedToneRev {
			return ErrToneChanged
		}

		msg.CreatedAt = nextMessageTime(conv.LastActivityAt, time.Now())
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", conv.ID).
			Update("last_activity_at", msg.CreatedAt).Error
	})
}

// FindByID 根据消息 ID 查找消息。
func (r *messageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

// ListByConversation 返回会话中的全部消息。
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&msgs).Error
	return msgs, err
}

// LatestByConversations 返回每个会话最近的一条消息。
func (r *messageRepository) LatestByConversations(ctx context.Context, conversationIDs []string) (map[string]model.Message, error) {
	result := make(map[string]model.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return result, nil
	}

	var msgs []model.Message
	err := r.db.WithContext(ctx).Raw(`
		SELECT m.* FROM messages m
		JOIN (
			SELECT conversation_id, MAX(created_at) AS created_at
			FROM messages
			WHERE conversation_id IN ?
			GROUP BY conversation_id
		) latest ON m.conversation_id = latest.conversation_id AND m.created_at = latest.created_at`,
		conversationIDs).Scan(&msgs).Error
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		result[m.ConversationID] = m
	}
	return result, nil
}

// CountUnread 统计各会话的未读消息数。
func (r *messageRepository) CountUnread(ctx context.Context, conversationIDs []string, userID string) (map[string]int64, error) {
	result := make(map[string]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		ConversationID string
		Count          int64
	}
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Select("conversation_id, COUNT(*) AS count").
		Where("conversation_id IN ? AND sender_id <> ? AND is_read = ?", conversationIDs, userID, false).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ConversationID] = row.Count
	}
	return result, nil
}

// MarkRead 批量标记已读，重复调用不会产生额外影响。
func (r *messageRepository) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"status":  model.MessageStatusRead,
		})
	return res.RowsAffected, res.Error
}

// MarkDelivered 推进消息的投递状态。
func (r *messageRepository) MarkDelivered(ctx context.Context, messageID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ? AND status = ?", messageID, model.MessageStatusSent).
		Update("status", model.MessageStatusDelivered)
	return res.RowsAffected > 0, res.Error
}
