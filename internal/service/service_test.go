package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"agent-chat-go/internal/config"
	"agent-chat-go/internal/model"
	"agent-chat-go/internal/repository"
	"agent-chat-go/pkg/events"

	"github.com/stretchr/testify/require"
)

// stubTransformer 追加固定后缀，可以按需失败或在改写时执行回调。
type stubTransformer struct {
	mu     sync.Mutex
	suffix string
	err    error
	calls  []model.ToneConfig
	during func(call int)
}

func (s *stubTransformer) Transform(_ context.Context, text string, cfg model.ToneConfig) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, cfg)
	n := len(s.calls)
	during := s.during
	s.mu.Unlock()
	if during != nil {
		during(n)
	}
	if s.err != nil {
		return "", s.err
	}
	return text + s.suffix + "[" + string(cfg.Tone) + "]", nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	messages  map[string][]model.MessageView
	reads     []int64
	broadcast []string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{messages: map[string][]model.MessageView{}}
}

func (n *recordingNotifier) NotifyNewMessage(_ context.Context, recipientID string, view model.MessageView) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages[recipientID] = append(n.messages[recipientID], view)
}

func (n *recordingNotifier) NotifyMessagesRead(_ context.Context, _, _, _ string, count int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reads = append(n.reads, count)
}

func (n *recordingNotifier) BroadcastSystem(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcast = append(n.broadcast, message)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.MessageEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.MessageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type fixture struct {
	store         *repository.MemoryStore
	transformer   *stubTransformer
	notifier      *recordingNotifier
	publisher     *recordingPublisher
	relay         RelayService
	conversations ConversationService
	users         UserService
	alice, bob    *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:       repository.NewMemoryStore(),
		transformer: &stubTransformer{suffix: " :)"},
		notifier:    newRecordingNotifier(),
		publisher:   &recordingPublisher{},
	}
	ctx := context.Background()
	f.alice = &model.User{Username: "alice"}
	f.bob = &model.User{Username: "bob"}
	require.NoError(t, f.store.Users().Create(ctx, f.alice))
	require.NoError(t, f.store.Users().Create(ctx, f.bob))

	f.relay = NewRelayService(f.store.Conversations(), f.store.Messages(), f.store.Users(),
		f.transformer, f.notifier, f.publisher, config.RelayConfig{MaxToneRetries: 2})
	f.conversations = NewConversationService(f.store.Conversations(), f.store.Messages(), f.store.Users())
	f.users = NewUserService(f.store.Users())
	return f
}

func (f *fixture) conversation(t *testing.T) string {
	t.Helper()
	conv, err := f.conversations.ResolveOrCreate(context.Background(), f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	return conv.ID
}

var errBoom = errors.New("boom")
