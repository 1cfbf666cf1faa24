// Package service 提供了搜索相关的业务逻辑。
package service

import (
	"context"
	"strings"
	"time"

	apperrors "agent-chat-go/pkg/errors"
	"agent-chat-go/pkg/es"
	"agent-chat-go/pkg/log"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// MessageSearcher 是消息全文索引的查询端，由 es.MessageIndex 实现。
type MessageSearcher interface {
	Search(ctx context.Context, q es.MessageQuery) ([]es.MessageHit, error)
}

// SearchHit 是返回给查看者的一条命中，原文只对发送者本人返回。
type SearchHit struct {
	MessageID       string    `json:"message_id"`
	SenderID        string    `json:"sender_id"`
	Content         string    `json:"content"`
	OriginalContent string    `json:"original_content,omitempty"`
	IsMine          bool      `json:"is_mine"`
	Timestamp       time.Time `json:"timestamp"`
	Score           float64   `json:"score"`
}

// SearchService 接口定义了搜索操作。
type SearchService interface {
	SearchMessages(ctx context.Context, conversationID, userID, query string, limit int) ([]SearchHit, error)
}

type searchService struct {
	searcher      MessageSearcher
	conversations ConversationService
}

// NewSearchService 创建一个新的 SearchService 实例。searcher 为 nil 时搜索不可用。
func NewSearchService(searcher MessageSearcher, conversations ConversationService) SearchService {
	return &searchService{searcher: searcher, conversations: conversations}
}

func (s *searchService) SearchMessages(ctx context.Context, conversationID, userID, query string, limit int) ([]SearchHit, error) {
	if s.searcher == nil {
		return nil, apperrors.ErrFeatureDisabled
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.InvalidArg("search query is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	if _, err := s.conversations.GetForParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	hits, err := s.searcher.Search(ctx, es.MessageQuery{
		ConversationID: conversationID,
		ViewerID:       userID,
		Text:           query,
		Size:           limit,
	})
	if err != nil {
		log.Errorf("[SearchService] 搜索会话 %s 失败: %v", conversationID, err)
		return nil, apperrors.Wrap(apperrors.CodeUnavailable, "search backend unavailable", err)
	}

	out := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		hit := SearchHit{
			MessageID: h.MessageID,
			SenderID:  h.SenderID,
			Content:   h.TransformedContent,
			IsMine:    h.SenderID == userID,
			Timestamp: h.CreatedAt,
			Score:     h.Score,
		}
		if hit.IsMine {
			hit.OriginalContent = h.OriginalContent
		}
		out = append(out, hit)
	}
	return out, nil
}
