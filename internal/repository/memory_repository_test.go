package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"agent-chat-go/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryConversations_FindOrCreateIsSymmetric(t *testing.T) {
	store := NewMemoryStore()
	repo := store.Conversations()
	ctx := context.Background()

	first, created, err := repo.FindOrCreate(ctx, "user-b", "user-a")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "user-a", first.UserAID)
	assert.Equal(t, "user-b", first.UserBID)
	assert.Equal(t, model.ToneNicer, first.ToneA)
	assert.Equal(t, model.ToneNicer, first.ToneB)

	second, created, err := repo.FindOrCreate(ctx, "user-a", "user-b")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestMemoryConversations_ConcurrentFindOrCreate(t *testing.T) {
	store := NewMemoryStore()
	repo := store.Conversations()
	ctx := context.Background()

	const n = 32
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u1, u2 := "alice", "bob"
			if i%2 == 0 {
				u1, u2 = u2, u1
			}
			conv, _, err := repo.FindOrCreate(ctx, u1, u2)
			if err == nil {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	convs, err := repo.ListByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestMemoryConversations_UpdateTone(t *testing.T) {
	store := NewMemoryStore()
	repo := store.Conversations()
	ctx := context.Background()
	conv, _, err := repo.FindOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	instr := "talk like a pirate"
	updated, err := repo.UpdateTone(ctx, conv.ID, "alice", model.ToneCustom, &instr)
	require.NoError(t, err)
	cfg, rev, ok := updated.ToneFor("alice")
	require.True(t, ok)
	assert.Equal(t, model.ToneCustom, cfg.Tone)
	assert.Equal(t, instr, cfg.Custom)
	assert.Equal(t, int64(1), rev)

	// 非 custom 语气不覆盖已保存的自定义提示
	other := "ignored"
	updated, err = repo.UpdateTone(ctx, conv.ID, "alice", model.ToneAngry, &other)
	require.NoError(t, err)
	cfg, _, _ = updated.ToneFor("alice")
	assert.Equal(t, model.ToneAngry, cfg.Tone)
	assert.Equal(t, instr, cfg.Custom)

	bobCfg, bobRev, _ := updated.ToneFor("bob")
	assert.Equal(t, model.ToneNicer, bobCfg.Tone)
	assert.Equal(t, int64(0), bobRev)

	_, err = repo.UpdateTone(ctx, conv.ID, "mallory", model.ToneAngry, nil)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = repo.UpdateTone(ctx, "missing", "alice", model.ToneAngry, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryMessages_AppendOrderingAndReadState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	conv, _, err := store.Conversations().FindOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	msgs := store.Messages()

	var last time.Time
	for i, sender := range []string{"alice", "bob", "alice"} {
		m := &model.Message{
			ID:                 uuid.NewString(),
			ConversationID:     conv.ID,
			SenderID:           sender,
			OriginalContent:    "hi",
			TransformedContent: "hello",
			Status:             model.MessageStatusSent,
		}
		require.NoError(t, msgs.Append(ctx, m, 0), "append %d", i)
		assert.True(t, m.CreatedAt.After(last))
		last = m.CreatedAt
	}

	reloaded, err := store.Conversations().FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, last, reloaded.LastActivityAt)

	unread, err := msgs.CountUnread(ctx, []string{conv.ID}, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread[conv.ID])

	n, err := msgs.MarkRead(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = msgs.MarkRead(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.Zero(t, n)

	unread, _ = msgs.CountUnread(ctx, []string{conv.ID}, "alice")
	assert.Equal(t, int64(1), unread[conv.ID])
}

func TestMemoryMessages_AppendRejectsStaleTone(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	conv, _, err := store.Conversations().FindOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = store.Conversations().UpdateTone(ctx, conv.ID, "alice", model.ToneMeaner, nil)
	require.NoError(t, err)

	m := &model.Message{ID: uuid.NewString(), ConversationID: conv.ID, SenderID: "alice"}
	assert.ErrorIs(t, store.Messages().Append(ctx, m, 0), ErrToneChanged)

	m.SenderID = "mallory"
	assert.ErrorIs(t, store.Messages().Append(ctx, m, 0), ErrNotParticipant)

	list, _ := store.Messages().ListByConversation(ctx, conv.ID)
	assert.Empty(t, list)
}

func TestMemoryMessages_MarkDeliveredOnlyMovesForward(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	conv, _, _ := store.Conversations().FindOrCreate(ctx, "alice", "bob")
	m := &model.Message{ID: uuid.NewString(), ConversationID: conv.ID, SenderID: "alice", Status: model.MessageStatusSent}
	require.NoError(t, store.Messages().Append(ctx, m, 0))

	ok, err := store.Messages().MarkDelivered(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = store.Messages().MarkRead(ctx, conv.ID, "bob")
	require.NoError(t, err)
	ok, err = store.Messages().MarkDelivered(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := store.Messages().FindByID(ctx, m.ID)
	assert.Equal(t, model.MessageStatusRead, got.Status)
}

func TestNextMessageTime(t *testing.T) {
	last := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, last.Add(time.Microsecond), nextMessageTime(last, last.Add(-time.Second)))
	assert.Equal(t, last.Add(time.Microsecond), nextMessageTime(last, last))
	later := last.Add(time.Second)
	assert.Equal(t, later, nextMessageTime(last, later))
}
