package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	apperrors "agent-chat-go/pkg/errors"
	"agent-chat-go/pkg/log"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 64
)

var (
	ErrClientClosed   = errors.New("websocket client closed")
	ErrSendBufferFull = errors.New("websocket send buffer full")
)

// ReadMarker 处理客户端发来的 mark_read 事件。
type ReadMarker interface {
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
}

// Client 是一个 gorilla WebSocket 连接，实现 Conn。
type Client struct {
	conn     *websocket.Conn
	userID   string
	registry *Registry
	marker   ReadMarker

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient 包装一个已升级的 WebSocket 连接。
func NewClient(conn *websocket.Conn, userID string, registry *Registry, marker ReadMarker) *Client {
	return &Client{
		conn:     conn,
		userID:   userID,
		registry: registry,
		marker:   marker,
		send:     make(chan []byte, sendBufSize),
		done:     make(chan struct{}),
	}
}

// Send 把数据放入发送缓冲区；缓冲区满或连接已关闭时返回错误。
// 缓冲区满说明客户端跟不上推送，此时直接断开连接，让客户端重连后重新拉取。
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		c.close()
		return ErrSendBufferFull
	}
}

// Serve 注册连接并运行读写循环，直到连接断开。
func (c *Client) Serve(ctx context.Context) {
	c.registry.Register(c.userID, c)
	defer func() {
		c.registry.Unregister(c.userID, c)
		c.close()
	}()

	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("从 WebSocket 读取消息失败: user=%s, err=%v", c.userID, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			c.sendError(string(apperrors.CodeInvalidArgument), "invalid event")
			continue
		}
		c.handleEvent(ctx, &evt)
	}
}

func (c *Client) handleEvent(ctx context.Context, evt *Event) {
	switch evt.Type {
	case EventTypePing:
		if data, err := NewEvent(EventTypePong, nil); err == nil {
			_ = c.Send(data)
		}

	case EventTypeMarkRead:
		var p MarkReadPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil || p.ConversationID == "" {
			c.sendError(string(apperrors.CodeInvalidArgument), "conversation_id required for mark_read")
			return
		}
		if _, err := c.marker.MarkRead(ctx, p.ConversationID, c.userID); err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				c.sendError(string(appErr.Code), appErr.Message)
				return
			}
			c.sendError(string(apperrors.CodeInternal), "mark_read failed")
		}

	default:
		c.sendError(string(apperrors.CodeInvalidArgument), "unknown event type: "+evt.Type)
	}
}

func (c *Client) sendError(code, message string) {
	data, err := NewEvent(EventTypeError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	_ = c.Send(data)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warnf("写入 WebSocket 失败: user=%s, err=%v", c.userID, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
