// Package pipeline 定义了消息事件的异步处理流程：把已发送的消息归档到搜索索引。
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"agent-chat-go/pkg/es"
	"agent-chat-go/pkg/events"
	"agent-chat-go/pkg/log"
)

// MessageIndexer 是搜索索引的写入端，由 es.MessageIndex 实现。
type MessageIndexer interface {
	IndexMessage(ctx context.Context, doc es.MessageDocument) error
}

// Processor 消费消息事件并写入搜索索引，实现 kafka.EventProcessor。
type Processor struct {
	indexer MessageIndexer
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(indexer MessageIndexer) *Processor {
	return &Processor{indexer: indexer}
}

// Process 处理一个消息事件。只有 message.sent 会被归档，其余事件直接跳过。
// 文档 ID 即消息 ID，重复投递的事件只会覆盖同一文档。
func (p *Processor) Process(ctx context.Context, event events.MessageEvent) error {
	if event.Type != events.TypeMessageSent {
		log.Debugf("[Processor] 跳过事件 %s, conversation=%s", event.Type, event.ConversationID)
		return nil
	}
	if event.MessageID == "" || event.ConversationID == "" {
		log.Warnf("[Processor] 消息事件缺少 ID, 处理中止: %+v", event)
		return errors.New("message event is missing ids")
	}

	doc := es.MessageDocument{
		MessageID:          event.MessageID,
		ConversationID:     event.ConversationID,
		SenderID:           event.SenderID,
		RecipientID:        event.RecipientID,
		Tone:               event.Tone,
		OriginalContent:    event.OriginalContent,
		TransformedContent: event.TransformedContent,
		CreatedAt:          event.OccurredAt,
	}
	if err := p.indexer.IndexMessage(ctx, doc); err != nil {
		log.Errorf("[Processor] 索引消息 %s 到Elasticsearch失败, Error: %v", event.MessageID, err)
		return fmt.Errorf("索引消息 %s 到 Elasticsearch 失败: %w", event.MessageID, err)
	}
	log.Infof("[Processor] 消息 %s 已归档, conversation=%s", event.MessageID, event.ConversationID)
	return nil
}
