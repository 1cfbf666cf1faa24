// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"

	"agent-chat-go/internal/model"
	"agent-chat-go/internal/repository"
	apperrors "agent-chat-go/pkg/errors"
	"agent-chat-go/pkg/log"
)

// ConversationService 定义了会话解析、语气配置与会话列表的接口。
type ConversationService interface {
	// ResolveOrCreate 返回 userID 与 otherUserID 之间唯一的会话，不存在时创建。
	ResolveOrCreate(ctx context.Context, userID, otherUserID string) (*model.ConversationSummary, error)
	// SetTone 只修改 userID 自己槽位的语气配置。
	SetTone(ctx context.Context, conversationID, userID string, tone model.Tone, customPrompt *string) (*model.ConversationSummary, error)
	// ListForUser 按最后活跃时间倒序返回用户参与的全部会话。
	ListForUser(ctx context.Context, userID string) ([]model.ConversationSummary, error)
	// GetForParticipant 读取会话并校验 userID 是参与者。
	GetForParticipant(ctx context.Context, conversationID, userID string) (*model.Conversation, error)
}

type conversationService struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	userRepo         repository.UserRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(conversationRepo repository.ConversationRepository, messageRepo repository.MessageRepository, userRepo repository.UserRepository) ConversationService {
	return &conversationService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
	}
}

func (s *conversationService) ResolveOrCreate(ctx context.Context, userID, otherUserID string) (*model.ConversationSummary, error) {
	if userID == otherUserID {
		return nil, apperrors.ErrCannotChatSelf
	}
	if _, err := s.userRepo.FindByID(ctx, otherUserID); err != nil {
		return nil, mapRepoError(err, apperrors.ErrUserNotFound)
	}

	conv, created, err := s.conversationRepo.FindOrCreate(ctx, userID, otherUserID)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrConversationNotFound)
	}
	if created {
		log.Infow("conversation created", "conversationId", conv.ID, "userA", conv.UserAID, "userB", conv.UserBID)
	}

	summaries, err := s.summarize(ctx, userID, []model.Conversation{*conv})
	if err != nil {
		return nil, err
	}
	return &summaries[0], nil
}

func (s *conversationService) SetTone(ctx context.Context, conversationID, userID string, tone model.Tone, customPrompt *string) (*model.ConversationSummary, error) {
	if !tone.Valid() {
		return nil, apperrors.ErrInvalidTone
	}
	conv, err := s.conversationRepo.UpdateTone(ctx, conversationID, userID, tone, customPrompt)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrConversationNotFound)
	}
	log.Infow("tone updated", "conversationId", conv.ID, "userId", userID, "tone", tone)

	summaries, err := s.summarize(ctx, userID, []model.Conversation{*conv})
	if err != nil {
		return nil, err
	}
	return &summaries[0], nil
}

func (s *conversationService) ListForUser(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	convs, err := s.conversationRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrConversationNotFound)
	}
	return s.summarize(ctx, userID, convs)
}

func (s *conversationService) GetForParticipant(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	conv, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrConversationNotFound)
	}
	if !conv.HasParticipant(userID) {
		return nil, apperrors.ErrNotParticipant
	}
	return conv, nil
}

// summarize 为 userID 构建会话视图，保持 convs 的顺序。
func (s *conversationService) summarize(ctx context.Context, userID string, convs []model.Conversation) ([]model.ConversationSummary, error) {
	if len(convs) == 0 {
		return []model.ConversationSummary{}, nil
	}

	ids := make([]string, 0, len(convs))
	otherIDs := make([]string, 0, len(convs))
	for i := range convs {
		ids = append(ids, convs[i].ID)
		other, _ := convs[i].OtherParticipant(userID)
		otherIDs = append(otherIDs, other)
	}

	users, err := s.userRepo.FindByIDs(ctx, otherIDs)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrUserNotFound)
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	latest, err := s.messageRepo.LatestByConversations(ctx, ids)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrConversationNotFound)
	}
	unread, err := s.messageRepo.CountUnread(ctx, ids, userID)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrConversationNotFound)
	}

	out := make([]model.ConversationSummary, 0, len(convs))
	for i, conv := range convs {
		toneCfg, _, _ := conv.ToneFor(userID)
		var custom *string
		if toneCfg.Custom != "" {
			c := toneCfg.Custom
			custom = &c
		}
		summary := model.ConversationSummary{
			ID:             conv.ID,
			OtherUser:      model.UserRef{ID: otherIDs[i], Username: names[otherIDs[i]]},
			UnreadCount:    unread[conv.ID],
			MyAgentTone:    toneCfg.Tone,
			MyCustomPrompt: custom,
			LastActivityAt: conv.LastActivityAt,
		}
		if m, ok := latest[conv.ID]; ok {
			summary.LastMessage = &model.LastMessage{
				ID:        m.ID,
				Content:   m.TransformedContent,
				Timestamp: m.CreatedAt,
				IsMine:    m.SenderID == userID,
			}
		}
		out = append(out, summary)
	}
	return out, nil
}
