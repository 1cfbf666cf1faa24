// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agent-chat-go/internal/config"
	"agent-chat-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const messageMapping = `{
	"mappings": {
		"properties": {
			"message_id": { "type": "keyword" },
			"conversation_id": { "type": "keyword" },
			"sender_id": { "type": "keyword" },
			"recipient_id": { "type": "keyword" },
			"tone": { "type": "keyword" },
			"original_content": { "type": "text" },
			"transformed_content": { "type": "text" },
			"created_at": { "type": "date" }
		}
	}
}`

// MessageDocument 是索引中的一条消息。
type MessageDocument struct {
	MessageID          string    `json:"message_id"`
	ConversationID     string    `json:"conversation_id"`
	SenderID           string    `json:"sender_id"`
	RecipientID        string    `json:"recipient_id"`
	Tone               string    `json:"tone"`
	OriginalContent    string    `json:"original_content"`
	TransformedContent string    `json:"transformed_content"`
	CreatedAt          time.Time `json:"created_at"`
}

// MessageQuery 描述一次会话内搜索。
// 改写后的内容对双方可见，原文只在查看者是发送者时参与匹配。
type MessageQuery struct {
	ConversationID string
	ViewerID       string
	Text           string
	Size           int
}

// MessageHit 是一条搜索命中。
type MessageHit struct {
	MessageDocument
	Score float64 `json:"score"`
}

// MessageIndex 封装了消息索引的读写。
type MessageIndex struct {
	client *elasticsearch.Client
	index  string
}

// NewClient 根据配置创建 Elasticsearch 客户端，多个地址以逗号分隔。
func NewClient(esCfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	var addrs []string
	for _, a := range strings.Split(esCfg.Addresses, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addrs,
		Username:  esCfg.Username,
		Password:  esCfg.Password,
	})
}

// NewMessageIndex 创建一个指向 indexName 的消息索引。
func NewMessageIndex(client *elasticsearch.Client, indexName string) *MessageIndex {
	return &MessageIndex{client: client, index: indexName}
}

// EnsureIndex 检查索引是否存在，如果不存在则创建它
func (m *MessageIndex) EnsureIndex(ctx context.Context) error {
	res, err := m.client.Indices.Exists([]string{m.index}, m.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", m.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = m.client.Indices.Create(
		m.index,
		m.client.Indices.Create.WithContext(ctx),
		m.client.Indices.Create.WithBody(strings.NewReader(messageMapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", m.index, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", m.index, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", m.index)
	return nil
}

// IndexMessage 以消息 ID 为文档 ID 写入索引，重复写入会覆盖同一文档。
func (m *MessageIndex) IndexMessage(ctx context.Context, doc MessageDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      m.index,
		DocumentID: doc.MessageID,
		Body:       bytes.NewReader(docBytes),
	}
	res, err := req.Do(ctx, m.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引消息到 Elasticsearch 出错: %s", res.String())
		return fmt.Errorf("failed to index message %s: %s", doc.MessageID, res.Status())
	}
	return nil
}

func buildSearchBody(q MessageQuery) map[string]interface{} {
	return map[string]interface{}{
		"size": q.Size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []map[string]interface{}{
					{"term": map[string]interface{}{"conversation_id": q.ConversationID}},
				},
				"should": []map[string]interface{}{
					{"match": map[string]interface{}{"transformed_content": q.Text}},
					{"bool": map[string]interface{}{
						"must":   map[string]interface{}{"match": map[string]interface{}{"original_content": q.Text}},
						"filter": map[string]interface{}{"term": map[string]interface{}{"sender_id": q.ViewerID}},
					}},
				},
				"minimum_should_match": 1,
			},
		},
		"sort": []interface{}{
			"_score",
			map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}},
		},
	}
}

// Search 在单个会话内搜索消息。
func (m *MessageIndex) Search(ctx context.Context, q MessageQuery) ([]MessageHit, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildSearchBody(q)); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := m.client.Search(
		m.client.Search.WithContext(ctx),
		m.client.Search.WithIndex(m.index),
		m.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source MessageDocument `json:"_source"`
				Score  float64         `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	hits := make([]MessageHit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		hits = append(hits, MessageHit{MessageDocument: h.Source, Score: h.Score})
	}
	return hits, nil
}
