// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"agent-chat-go/internal/config"
	"agent-chat-go/internal/model"
	"agent-chat-go/internal/repository"
	"agent-chat-go/internal/tone"
	apperrors "agent-chat-go/pkg/errors"
	"agent-chat-go/pkg/events"
	"agent-chat-go/pkg/log"

	"github.com/google/uuid"
)

// RelayService 定义了消息发送、读取与已读状态的接口。
type RelayService interface {
	// Send 按发送者当前的语气改写消息，持久化后推送给接收方。
	Send(ctx context.Context, conversationID, senderID, text string) (*model.MessageView, error)
	// MarkRead 把 readerID 收到的未读消息标记为已读，返回本次标记的条数。
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
	// ListMessages 按时间升序返回会话的全部消息，仅参与者可读。
	ListMessages(ctx context.Context, conversationID, viewerID string) ([]model.MessageView, error)
	// MarkDelivered 把消息状态从 sent 推进到 delivered。
	MarkDelivered(ctx context.Context, messageID string) error
}

type relayService struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	userRepo         repository.UserRepository
	transformer      tone.Transformer
	notifier         Notifier
	publisher        EventPublisher
	maxToneRetries   int
}

// NewRelayService 创建一个新的 RelayService 实例。notifier 与 publisher 可以为 nil。
func NewRelayService(
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	transformer tone.Transformer,
	notifier Notifier,
	publisher EventPublisher,
	cfg config.RelayConfig,
) RelayService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	retries := cfg.MaxToneRetries
	if retries < 0 {
		retries = 0
	}
	return &relayService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
		transformer:      transformer,
		notifier:         notifier,
		publisher:        publisher,
		maxToneRetries:   retries,
	}
}

func (s *relayService) Send(ctx context.Context, conversationID, senderID, text string) (*model.MessageView, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.ErrEmptyContent
	}

	for attempt := 0; attempt <= s.maxToneRetries; attempt++ {
		conv, err := s.conversationRepo.FindByID(ctx, conversationID)
		if err != nil {
			return nil, mapRepoError(err, apperrors.ErrConversationNotFound)
		}
		toneCfg, rev, ok := conv.ToneFor(senderID)
		if !ok {
			return nil, apperrors.ErrNotParticipant
		}

		// 改写在任何锁和事务之外进行
		transformed, err := s.transformer.Transform(ctx, text, toneCfg)
		if err != nil {
			if apperrors.CodeOf(err) == apperrors.CodeUnknown {
				err = apperrors.ErrTransformationFailed(err)
			}
			return nil, err
		}

		msg := &model.Message{
			ID:                 uuid.NewString(),
			ConversationID:     conv.ID,
			SenderID:           senderID,
			OriginalContent:    text,
			TransformedContent: transformed,
			Status:             model.MessageStatusSent,
		}
		err = s.messageRepo.Append(ctx, msg, rev)
		if errors.Is(err, repository.ErrToneChanged) {
			log.Infow("sender tone changed during send, retransforming",
				"conversationId", conv.ID, "senderId", senderID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, mapRepoError(err, apperrors.ErrConversationNotFound)
		}

		recipientID, _ := conv.OtherParticipant(senderID)
		return s.afterSend(ctx, msg, recipientID, toneCfg.Tone), nil
	}
	return nil, apperrors.ErrToneContention
}

// afterSend 推送并发布事件；两者的失败都只记录日志。
func (s *relayService) afterSend(ctx context.Context, msg *model.Message, recipientID string, usedTone model.Tone) *model.MessageView {
	senderName := s.usernames(ctx, msg.SenderID)[msg.SenderID]

	s.notifier.NotifyNewMessage(ctx, recipientID, model.MessageView{
		Message:        *msg,
		SenderUsername: senderName,
		IsMine:         false,
	})

	err := s.publisher.Publish(ctx, events.MessageEvent{
		Type:               events.TypeMessageSent,
		MessageID:          msg.ID,
		ConversationID:     msg.ConversationID,
		SenderID:           msg.SenderID,
		RecipientID:        recipientID,
		Tone:               string(usedTone),
		OriginalContent:    msg.OriginalContent,
		TransformedContent: msg.TransformedContent,
		OccurredAt:         msg.CreatedAt,
	})
	if err != nil {
		log.Warnw("failed to publish message event", "messageId", msg.ID, "error", err)
	}

	// 推送可能已经把状态推进为 delivered
	if latest, err := s.messageRepo.FindByID(ctx, msg.ID); err == nil {
		msg = latest
	}
	return &model.MessageView{Message: *msg, SenderUsername: senderName, IsMine: true}
}

func (s *relayService) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	conv, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return 0, mapRepoError(err, apperrors.ErrConversationNotFound)
	}
	senderID, ok := conv.OtherParticipant(readerID)
	if !ok {
		return 0, apperrors.ErrNotParticipant
	}

	count, err := s.messageRepo.MarkRead(ctx, conv.ID, readerID)
	if err != nil {
		return 0, mapRepoError(err, apperrors.ErrConversationNotFound)
	}
	if count == 0 {
		return 0, nil
	}

	s.notifier.NotifyMessagesRead(ctx, senderID, conv.ID, readerID, count)
	if err := s.publisher.Publish(ctx, events.MessageEvent{
		Type:           events.TypeMessagesRead,
		ConversationID: conv.ID,
		ReaderID:       readerID,
		ReadCount:      count,
		OccurredAt:     time.Now().UTC(),
	}); err != nil {
		log.Warnw("failed to publish read event", "conversationId", conv.ID, "error", err)
	}
	return count, nil
}

func (s *relayService) ListMessages(ctx context.Context, conversationID, viewerID string) ([]model.MessageView, error) {
	conv, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrConversationNotFound)
	}
	if !conv.HasParticipant(viewerID) {
		return nil, apperrors.ErrNotParticipant
	}

	msgs, err := s.messageRepo.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, mapRepoError(err, apperrors.ErrConversationNotFound)
	}
	names := s.usernames(ctx, conv.UserAID, conv.UserBID)

	views := make([]model.MessageView, 0, len(msgs))
	for _, m := range msgs {
		name, ok := names[m.SenderID]
		if !ok {
			name = "Unknown"
		}
		views = append(views, model.MessageView{
			Message:        m,
			SenderUsername: name,
			IsMine:         m.SenderID == viewerID,
		})
	}
	return views, nil
}

func (s *relayService) MarkDelivered(ctx context.Context, messageID string) error {
	moved, err := s.messageRepo.MarkDelivered(ctx, messageID)
	if err != nil {
		return mapRepoError(err, apperrors.ErrMessageNotFound)
	}
	if moved {
		log.Debugf("message %s delivered", messageID)
	}
	return nil
}

func (s *relayService) usernames(ctx context.Context, ids ...string) map[string]string {
	names := make(map[string]string, len(ids))
	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		log.Warnw("failed to load usernames", "error", err)
		return names
	}
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names
}
