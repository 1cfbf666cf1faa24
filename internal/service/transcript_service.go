// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agent-chat-go/internal/config"
	"agent-chat-go/internal/model"
	apperrors "agent-chat-go/pkg/errors"
	"agent-chat-go/pkg/log"
)

// ObjectStore 是导出文件的存放位置，由 storage.MinIOStore 实现。
type ObjectStore interface {
	PutObject(ctx context.Context, objectName string, data []byte, contentType string) error
	PresignedGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// Transcript 是导出文件的内容。
type Transcript struct {
	ConversationID string              `json:"conversation_id"`
	ExportedBy     string              `json:"exported_by"`
	ExportedAt     time.Time           `json:"exported_at"`
	Messages       []model.MessageView `json:"messages"`
}

// TranscriptExport 描述一次导出的结果。
type TranscriptExport struct {
	ObjectName   string    `json:"object_name"`
	URL          string    `json:"url"`
	ExpiresAt    time.Time `json:"expires_at"`
	MessageCount int       `json:"message_count"`
}

// TranscriptService 把会话记录导出到对象存储。
type TranscriptService interface {
	Export(ctx context.Context, conversationID, userID string) (*TranscriptExport, error)
}

type transcriptService struct {
	relay  RelayService
	store  ObjectStore
	expiry time.Duration
	now    func() time.Time
}

// NewTranscriptService 创建一个新的 TranscriptService。store 为 nil 时导出不可用。
func NewTranscriptService(relay RelayService, store ObjectStore, cfg config.MinIOConfig) TranscriptService {
	expiry := time.Duration(cfg.PresignMinutes) * time.Minute
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &transcriptService{relay: relay, store: store, expiry: expiry, now: time.Now}
}

func (s *transcriptService) Export(ctx context.Context, conversationID, userID string) (*TranscriptExport, error) {
	if s.store == nil {
		return nil, apperrors.ErrFeatureDisabled
	}
	// ListMessages 同时完成参与者校验
	views, err := s.relay.ListMessages(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	data, err := json.MarshalIndent(Transcript{
		ConversationID: conversationID,
		ExportedBy:     userID,
		ExportedAt:     now,
		Messages:       views,
	}, "", "  ")
	if err != nil {
		return nil, apperrors.ErrInternal("failed to encode transcript", err)
	}

	objectName := fmt.Sprintf("transcripts/%s/%s-%d.json", conversationID, userID, now.UnixNano())
	if err := s.store.PutObject(ctx, objectName, data, "application/json"); err != nil {
		log.Errorf("上传会话记录失败: conversation=%s, err=%v", conversationID, err)
		return nil, apperrors.Wrap(apperrors.CodeUnavailable, "object storage unavailable", err)
	}
	url, err := s.store.PresignedGetURL(ctx, objectName, s.expiry)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnavailable, "object storage unavailable", err)
	}

	log.Infow("transcript exported", "conversationId", conversationID, "userId", userID, "messages", len(views))
	return &TranscriptExport{
		ObjectName:   objectName,
		URL:          url,
		ExpiresAt:    now.Add(s.expiry),
		MessageCount: len(views),
	}, nil
}
