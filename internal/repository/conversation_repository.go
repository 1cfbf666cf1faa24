package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agent-chat-go/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository 定义了两人会话及其语气配置的持久化操作。
type ConversationRepository interface {
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	// FindOrCreate 按无序用户对查找会话，不存在则创建；第二个返回值表示是否新建。
	FindOrCreate(ctx context.Context, userID, otherUserID string) (*model.Conversation, bool, error)
	// UpdateTone 在行锁内修改 userID 所在槽位的语气。
	UpdateTone(ctx context.Context, conversationID, userID string, tone model.Tone, custom *string) (*model.Conversation, error)
	// ListByUser 按最后活跃时间倒序返回用户参与的所有会话。
	ListByUser(ctx context.Context, userID string) ([]model.Conversation, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// FindByID 根据会话 ID 查找会话。
func (r *conversationRepository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (r *conversationRepository) findByPair(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? AND user_b_id = ?", userA, userB).
		First(&conv).Error
	if err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

// FindOrCreate 获取或创建一个会话。
// 用户对先规范化为 (较小 ID, 较大 ID)，插入依赖唯一索引并忽略冲突，
// 并发创建中落败的一方重新读取胜者的记录。
func (r *conversationRepository) FindOrCreate(ctx context.Context, userID, otherUserID string) (*model.Conversation, bool, error) {
	a, b := model.CanonicalPair(userID, otherUserID)

	conv, err := r.findByPair(ctx, a, b)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	conv = &model.Conversation{
		ID:             uuid.NewString(),
		UserAID:        a,
		UserBID:        b,
		ToneA:          model.DefaultTone,
		ToneB:          model.DefaultTone,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(conv)
	if res.Error == nil && res.RowsAffected == 1 {
		return conv, true, nil
	}

	// 并发插入同一唯一键时 InnoDB 可能把其中一方判为死锁，此时另一方已经提交
	winner, err := r.findByPair(ctx, a, b)
	if err != nil {
		if res.Error != nil {
			return nil, false, fmt.Errorf("failed to create conversation: %w", res.Error)
		}
		return nil, false, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return winner, false, nil
}

// UpdateTone 修改会话中某一方的语气配置，同一槽位的并发修改以最后一次提交为准。
func (r *conversationRepository) UpdateTone(ctx context.Context, conversationID, userID string, tone model.Tone, custom *string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", conversationID).
			First(&conv).Error; err != nil {
			return translate(err)
		}
		if !conv.ApplyTone(userID, tone, custom) {
			return ErrNotParticipant
		}
		return tx.Model(&model.Conversation{}).Where("id = ?", conv.ID).Updates(map[string]interface{}{
			"tone_a":          conv.ToneA,
			"custom_prompt_a": conv.CustomPromptA,
			"tone_rev_a":      conv.ToneRevA,
			"tone_b":          conv.ToneB,
			"custom_prompt_b": conv.CustomPromptB,
			"tone_rev_b":      conv.ToneRevB,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListByUser 返回用户参与的所有会话，按最后活跃时间倒序。
func (r *conversationRepository) ListByUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("last_activity_at DESC").
		Find(&convs).Error
	return convs, err
}
