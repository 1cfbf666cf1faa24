package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"agent-chat-go/pkg/events"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.queue) == 0 {
		return kafka.Message{}, context.Canceled
	}
	m := f.queue[0]
	f.queue = f.queue[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

type flakyProcessor struct {
	failures map[string]int
	seen     []string
}

func (p *flakyProcessor) Process(_ context.Context, e events.MessageEvent) error {
	p.seen = append(p.seen, e.MessageID)
	if p.failures[e.MessageID] > 0 {
		p.failures[e.MessageID]--
		return errors.New("index unavailable")
	}
	return nil
}

func encode(t *testing.T, e events.MessageEvent) kafka.Message {
	t.Helper()
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(e.Key()), Value: b}
}

func newAttempts(t *testing.T) (*RedisAttempts, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisAttempts(rdb), mr
}

func TestConsume_CommitsSuccessAndMalformed(t *testing.T) {
	attempts, _ := newAttempts(t)
	ok := events.MessageEvent{Type: events.TypeMessageSent, MessageID: "m1", ConversationID: "c1", OccurredAt: time.Now()}
	r := &fakeReader{queue: []kafka.Message{encode(t, ok), {Value: []byte("{not json")}}}
	p := &flakyProcessor{failures: map[string]int{}}

	consume(context.Background(), r, p, attempts)

	assert.Equal(t, []string{"m1"}, p.seen)
	assert.Len(t, r.committed, 2)
	assert.True(t, r.closed)
}

func fastRetries(t *testing.T) {
	old := retryBackoff
	retryBackoff = time.Millisecond
	t.Cleanup(func() { retryBackoff = old })
}

func TestConsume_RetriesInPlaceBeforeNextMessage(t *testing.T) {
	fastRetries(t)
	attempts, mr := newAttempts(t)
	first := events.MessageEvent{Type: events.TypeMessageSent, MessageID: "m1", ConversationID: "c1"}
	second := events.MessageEvent{Type: events.TypeMessageSent, MessageID: "m2", ConversationID: "c1"}
	r := &fakeReader{queue: []kafka.Message{encode(t, first), encode(t, second)}}
	p := &flakyProcessor{failures: map[string]int{"m1": 2}}

	consume(context.Background(), r, p, attempts)

	assert.Equal(t, []string{"m1", "m1", "m1", "m2"}, p.seen)
	require.Len(t, r.committed, 2)
	assert.Equal(t, encode(t, first).Value, r.committed[0].Value)
	assert.False(t, mr.Exists(attemptsKey(first.DedupKey())))
}

func TestConsume_GivesUpAfterMaxAttempts(t *testing.T) {
	fastRetries(t)
	attempts, mr := newAttempts(t)
	e := events.MessageEvent{Type: events.TypeMessageSent, MessageID: "m2", ConversationID: "c1"}
	r := &fakeReader{queue: []kafka.Message{encode(t, e)}}
	p := &flakyProcessor{failures: map[string]int{"m2": 10}}

	consume(context.Background(), r, p, attempts)

	assert.Len(t, p.seen, maxAttempts)
	assert.Len(t, r.committed, 1)
	got, err := mr.Get(attemptsKey(e.DedupKey()))
	require.NoError(t, err)
	assert.Equal(t, "3", got)
}

func TestConsume_AttemptsSurviveRestart(t *testing.T) {
	fastRetries(t)
	attempts, mr := newAttempts(t)
	e := events.MessageEvent{Type: events.TypeMessageSent, MessageID: "m3", ConversationID: "c1"}
	require.NoError(t, mr.Set(attemptsKey(e.DedupKey()), "2"))
	r := &fakeReader{queue: []kafka.Message{encode(t, e)}}
	p := &flakyProcessor{failures: map[string]int{"m3": 10}}

	consume(context.Background(), r, p, attempts)

	assert.Len(t, p.seen, 1)
	assert.Len(t, r.committed, 1)
}

func TestConsume_CancelDuringBackoffLeavesOffsetUncommitted(t *testing.T) {
	attempts, _ := newAttempts(t)
	ctx, cancel := context.WithCancel(context.Background())
	e := events.MessageEvent{Type: events.TypeMessageSent, MessageID: "m4", ConversationID: "c1"}
	r := &fakeReader{queue: []kafka.Message{encode(t, e)}}
	p := &cancellingProcessor{cancel: cancel}

	consume(ctx, r, p, attempts)

	assert.Equal(t, 1, p.calls)
	assert.Empty(t, r.committed)
	assert.True(t, r.closed)
}

type cancellingProcessor struct {
	cancel context.CancelFunc
	calls  int
}

func (p *cancellingProcessor) Process(context.Context, events.MessageEvent) error {
	p.calls++
	p.cancel()
	return errors.New("index unavailable")
}
