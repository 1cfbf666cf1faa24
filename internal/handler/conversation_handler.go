// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"strconv"

	"agent-chat-go/internal/model"
	"agent-chat-go/internal/service"
	"agent-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理会话与消息相关的 API 请求。
type ConversationHandler struct {
	conversations service.ConversationService
	relay         service.RelayService
	search        service.SearchService
	transcripts   service.TranscriptService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(
	conversations service.ConversationService,
	relay service.RelayService,
	search service.SearchService,
	transcripts service.TranscriptService,
) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		relay:         relay,
		search:        search,
		transcripts:   transcripts,
	}
}

// SendMessageRequest 定义了发送消息 API 的请求体结构。
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpdateToneRequest 定义了修改语气 API 的请求体结构。
type UpdateToneRequest struct {
	Tone         string  `json:"tone" binding:"required"`
	CustomPrompt *string `json:"custom_prompt"`
}

// ListConversations 返回当前用户的会话列表。
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	convs, err := h.conversations.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, convs)
}

// ResolveConversation 获取或创建与另一位用户的会话。
func (h *ConversationHandler) ResolveConversation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	conv, err := h.conversations.ResolveOrCreate(c.Request.Context(), user.ID, c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, conv)
}

// ListMessages 返回会话消息；默认先把收到的消息标记为已读，?mark_read=false 可关闭。
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	convID := c.Param("id")
	markRead, err := strconv.ParseBool(c.DefaultQuery("mark_read", "true"))
	if err != nil {
		badRequest(c, "mark_read 必须是布尔值")
		return
	}

	if markRead {
		if _, err := h.relay.MarkRead(c.Request.Context(), convID, user.ID); err != nil {
			fail(c, err)
			return
		}
	}
	msgs, err := h.relay.ListMessages(c.Request.Context(), convID, user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, msgs)
}

// SendMessage 发送一条消息。
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("SendMessage: Invalid request payload, error: %v", err)
		badRequest(c, "无效的请求负载：content 不能为空")
		return
	}

	msg, err := h.relay.Send(c.Request.Context(), c.Param("id"), user.ID, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, msg)
}

// MarkRead 把会话中收到的消息全部标记为已读。
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.relay.MarkRead(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"marked": n})
}

// UpdateTone 修改当前用户在会话中的语气。
func (h *ConversationHandler) UpdateTone(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req UpdateToneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求负载：tone 不能为空")
		return
	}
	tone, valid := model.ParseTone(req.Tone)
	if !valid {
		badRequest(c, "invalid tone")
		return
	}

	conv, err := h.conversations.SetTone(c.Request.Context(), c.Param("id"), user.ID, tone, req.CustomPrompt)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, conv)
}

// SearchMessages 在会话内全文搜索消息。
func (h *ConversationHandler) SearchMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	hits, err := h.search.SearchMessages(c.Request.Context(), c.Param("id"), user.ID, c.Query("q"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, hits)
}

// ExportTranscript 导出会话记录并返回下载链接。
func (h *ConversationHandler) ExportTranscript(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	out, err := h.transcripts.Export(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, out)
}
