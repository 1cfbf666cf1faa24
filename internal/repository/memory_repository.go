package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"agent-chat-go/internal/model"

	"github.com/google/uuid"
)

// MemoryStore 是进程内的存储实现，供本地开发（database.driver=memory）和测试使用。
// 三个仓库共享同一把锁，每个操作都是原子的。
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]model.User
	conversations map[string]*model.Conversation
	pairs         map[[2]string]string        // 规范化用户对 -> 会话 ID
	messages      map[string][]*model.Message // 会话 ID -> 按时间排序的消息
	messageIndex  map[string]*model.Message
}

// NewMemoryStore 创建一个空的内存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]model.User),
		conversations: make(map[string]*model.Conversation),
		pairs:         make(map[[2]string]string),
		messages:      make(map[string][]*model.Message),
		messageIndex:  make(map[string]*model.Message),
	}
}

// Users 返回基于该存储的 UserRepository。
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Conversations 返回基于该存储的 ConversationRepository。
func (s *MemoryStore) Conversations() ConversationRepository { return memoryConversations{s} }

// Messages 返回基于该存储的 MessageRepository。
func (s *MemoryStore) Messages() MessageRepository { return memoryMessages{s} }

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r memoryUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r memoryUsers) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryUsers) FindByIDs(_ context.Context, ids []string) ([]model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (r memoryUsers) FindAllExcept(_ context.Context, id string) ([]model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	users := make([]model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		if u.ID != id {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

type memoryConversations struct{ s *MemoryStore }

func (r memoryConversations) FindByID(_ context.Context, id string) (*model.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	conv := *c
	return &conv, nil
}

func (r memoryConversations) FindOrCreate(_ context.Context, userID, otherUserID string) (*model.Conversation, bool, error) {
	a, b := model.CanonicalPair(userID, otherUserID)
	key := [2]string{a, b}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if id, ok := r.s.pairs[key]; ok {
		conv := *r.s.conversations[id]
		return &conv, false, nil
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	c := &model.Conversation{
		ID:             uuid.NewString(),
		UserAID:        a,
		UserBID:        b,
		ToneA:          model.DefaultTone,
		ToneB:          model.DefaultTone,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	r.s.conversations[c.ID] = c
	r.s.pairs[key] = c.ID
	conv := *c
	return &conv, true, nil
}

func (r memoryConversations) UpdateTone(_ context.Context, conversationID, userID string, tone model.Tone, custom *string) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	if !c.ApplyTone(userID, tone, copyString(custom)) {
		return nil, ErrNotParticipant
	}
	conv := *c
	return &conv, nil
}

func (r memoryConversations) ListByUser(_ context.Context, userID string) ([]model.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var convs []model.Conversation
	for _, c := range r.s.conversations {
		if c.HasParticipant(userID) {
			convs = append(convs, *c)
		}
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].LastActivityAt.After(convs[j].LastActivityAt) })
	return convs, nil
}

type memoryMessages struct{ s *MemoryStore }

func (r memoryMessages) Append(_ context.Context, msg *model.Message, expectedToneRev int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[msg.ConversationID]
	if !ok {
		return ErrNotFound
	}
	_, rev, ok := c.ToneFor(msg.SenderID)
	if !ok {
		return ErrNotParticipant
	}
	if rev != expectedToneRev {
		return ErrToneChanged
	}

	msg.CreatedAt = nextMessageTime(c.LastActivityAt, time.Now())
	stored := *msg
	r.s.messages[c.ID] = append(r.s.messages[c.ID], &stored)
	r.s.messageIndex[stored.ID] = &stored
	c.LastActivityAt = msg.CreatedAt
	return nil
}

func (r memoryMessages) FindByID(_ context.Context, id string) (*model.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.messageIndex[id]
	if !ok {
		return nil, ErrNotFound
	}
	msg := *m
	return &msg, nil
}

func (r memoryMessages) ListByConversation(_ context.Context, conversationID string) ([]model.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	stored := r.s.messages[conversationID]
	msgs := make([]model.Message, 0, len(stored))
	for _, m := range stored {
		msgs = append(msgs, *m)
	}
	return msgs, nil
}

func (r memoryMessages) LatestByConversations(_ context.Context, conversationIDs []string) (map[string]model.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make(map[string]model.Message, len(conversationIDs))
	for _, id := range conversationIDs {
		if stored := r.s.messages[id]; len(stored) > 0 {
			result[id] = *stored[len(stored)-1]
		}
	}
	return result, nil
}

func (r memoryMessages) CountUnread(_ context.Context, conversationIDs []string, userID string) (map[string]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make(map[string]int64, len(conversationIDs))
	for _, id := range conversationIDs {
		for _, m := range r.s.messages[id] {
			if m.SenderID != userID && !m.IsRead {
				result[id]++
			}
		}
	}
	return result, nil
}

func (r memoryMessages) MarkRead(_ context.Context, conversationID, readerID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.messages[conversationID] {
		if m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			m.Status = model.MessageStatusRead
			n++
		}
	}
	return n, nil
}

func (r memoryMessages) MarkDelivered(_ context.Context, messageID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messageIndex[messageID]
	if !ok {
		return false, ErrNotFound
	}
	if m.Status != model.MessageStatusSent {
		return false, nil
	}
	m.Status = model.MessageStatusDelivered
	return true, nil
}

// Clear 删除所有数据。
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]model.User)
	s.conversations = make(map[string]*model.Conversation)
	s.pairs = make(map[[2]string]string)
	s.messages = make(map[string][]*model.Message)
	s.messageIndex = make(map[string]*model.Message)
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
