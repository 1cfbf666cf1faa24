package service

import (
	"context"
	"sync"
	"testing"

	"agent-chat-go/internal/model"
	apperrors "agent-chat-go/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrCreate_SymmetricAndDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ab, err := f.conversations.ResolveOrCreate(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	ba, err := f.conversations.ResolveOrCreate(ctx, f.bob.ID, f.alice.ID)
	require.NoError(t, err)

	assert.Equal(t, ab.ID, ba.ID)
	assert.Equal(t, model.ToneNicer, ab.MyAgentTone)
	assert.Equal(t, model.ToneNicer, ba.MyAgentTone)
	assert.Equal(t, "bob", ab.OtherUser.Username)
	assert.Equal(t, "alice", ba.OtherUser.Username)
	assert.Nil(t, ab.LastMessage)
	assert.Nil(t, ab.MyCustomPrompt)
}

func TestResolveOrCreate_ConcurrentCallsYieldOneConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := f.alice.ID, f.bob.ID
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := f.conversations.ResolveOrCreate(ctx, a, b)
			if assert.NoError(t, err) {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	convs, err := f.conversations.ListForUser(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestResolveOrCreate_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.conversations.ResolveOrCreate(ctx, f.alice.ID, f.alice.ID)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))

	_, err = f.conversations.ResolveOrCreate(ctx, f.alice.ID, "ghost")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestSetTone_OnlyActingSlotAndCustomPromptKept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	convID := f.conversation(t)

	prompt := "talk like a pirate"
	view, err := f.conversations.SetTone(ctx, convID, f.alice.ID, model.ToneCustom, &prompt)
	require.NoError(t, err)
	assert.Equal(t, model.ToneCustom, view.MyAgentTone)
	require.NotNil(t, view.MyCustomPrompt)
	assert.Equal(t, prompt, *view.MyCustomPrompt)

	// 切换到非 custom 语气时保留已保存的自定义提示
	other := "ignored"
	view, err = f.conversations.SetTone(ctx, convID, f.alice.ID, model.ToneSmarter, &other)
	require.NoError(t, err)
	assert.Equal(t, model.ToneSmarter, view.MyAgentTone)
	require.NotNil(t, view.MyCustomPrompt)
	assert.Equal(t, prompt, *view.MyCustomPrompt)

	bobView, err := f.conversations.ResolveOrCreate(ctx, f.bob.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ToneNicer, bobView.MyAgentTone)
}

func TestSetTone_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	convID := f.conversation(t)

	_, err := f.conversations.SetTone(ctx, convID, f.alice.ID, model.Tone("whisper"), nil)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))

	_, err = f.conversations.SetTone(ctx, "missing", f.alice.ID, model.ToneAngry, nil)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))

	_, err = f.conversations.SetTone(ctx, convID, "mallory", model.ToneAngry, nil)
	assert.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))
}

func TestListForUser_OrderedByLastActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	carol := &model.User{Username: "carol"}
	require.NoError(t, f.store.Users().Create(ctx, carol))

	withBob := f.conversation(t)
	withCarol, err := f.conversations.ResolveOrCreate(ctx, f.alice.ID, carol.ID)
	require.NoError(t, err)

	_, err = f.relay.Send(ctx, withCarol.ID, carol.ID, "first")
	require.NoError(t, err)
	_, err = f.relay.Send(ctx, withBob, f.bob.ID, "second")
	require.NoError(t, err)

	convs, err := f.conversations.ListForUser(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, withBob, convs[0].ID)
	assert.Equal(t, withCarol.ID, convs[1].ID)
	assert.EqualValues(t, 1, convs[0].UnreadCount)
	assert.Equal(t, "second :)[nicer]", convs[0].LastMessage.Content)
}

func TestGetForParticipant(t *testing.T) {
	f := newFixture(t)
	convID := f.conversation(t)

	conv, err := f.conversations.GetForParticipant(context.Background(), convID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, convID, conv.ID)

	_, err = f.conversations.GetForParticipant(context.Background(), convID, "mallory")
	assert.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))
}
