package ws

import (
	"sync"

	"agent-chat-go/pkg/log"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

// Conn 是注册表中的一个连接句柄。Send 不应阻塞。
type Conn interface {
	Send(data []byte) error
}

type shard struct {
	mu    sync.RWMutex
	conns map[string]map[Conn]struct{}
}

// Registry 记录每个用户当前的所有连接，按用户 ID 分片加锁。
type Registry struct {
	shards [shardCount]*shard
}

// NewRegistry 创建一个空的连接注册表。
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{conns: make(map[string]map[Conn]struct{})}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	return r.shards[xxhash.Sum64String(userID)%shardCount]
}

// Register 为用户登记一个连接，同一句柄重复登记无副作用。
func (r *Registry) Register(userID string, c Conn) {
	s := r.shardFor(userID)
	s.mu.Lock()
	set, ok := s.conns[userID]
	if !ok {
		set = make(map[Conn]struct{})
		s.conns[userID] = set
	}
	set[c] = struct{}{}
	n := len(set)
	s.mu.Unlock()
	log.Infow("connection registered", "userId", userID, "userConnections", n)
}

// Unregister 移除用户的一个连接；集合为空时删除该用户条目。
func (r *Registry) Unregister(userID string, c Conn) {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.conns[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(s.conns, userID)
	}
}

func (r *Registry) snapshot(userID string) []Conn {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.conns[userID]
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Notify 把 payload 发给用户的每个连接，返回成功接收的连接数。
// 发送在锁外进行，失败的连接会被移除，不影响其余连接。
func (r *Registry) Notify(userID string, payload []byte) int {
	delivered := 0
	for _, c := range r.snapshot(userID) {
		if err := c.Send(payload); err != nil {
			log.Warnw("dropping connection after failed send", "userId", userID, "error", err)
			r.Unregister(userID, c)
			continue
		}
		delivered++
	}
	return delivered
}

// Broadcast 把 payload 发给所有用户的所有连接，仅用于管理员的系统通知。
func (r *Registry) Broadcast(payload []byte) int {
	delivered := 0
	for _, userID := range r.users() {
		delivered += r.Notify(userID, payload)
	}
	return delivered
}

func (r *Registry) users() []string {
	var ids []string
	for _, s := range r.shards {
		s.mu.RLock()
		for id := range s.conns {
			ids = append(ids, id)
		}
		s.mu.RUnlock()
	}
	return ids
}

// Count 返回当前的连接总数。
func (r *Registry) Count() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		for _, set := range s.conns {
			total += len(set)
		}
		s.mu.RUnlock()
	}
	return total
}

// UserConnections 返回某个用户的连接数。
func (r *Registry) UserConnections(userID string) int {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns[userID])
}

// Users 返回当前在线的用户数。
func (r *Registry) Users() int {
	return len(r.users())
}
