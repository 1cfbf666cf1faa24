package ws

import (
	"context"
	"encoding/json"

	"agent-chat-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// RedisFanout 通过 Redis pub/sub 把推送分发到所有实例。
type RedisFanout struct {
	rdb     *redis.Client
	channel string
}

func NewRedisFanout(rdb *redis.Client, channel string) *RedisFanout {
	return &RedisFanout{rdb: rdb, channel: channel}
}

func (f *RedisFanout) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, f.channel, data).Err()
}

// Run 订阅频道并把收到的推送交给本地投递，直到 ctx 取消。
// ready 在订阅确认后关闭，可以为 nil。
func (f *RedisFanout) Run(ctx context.Context, notifier *HubNotifier, ready chan<- struct{}) error {
	sub := f.rdb.Subscribe(ctx, f.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}
	log.Infof("Redis fanout 已订阅频道 '%s'", f.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warnw("discarding malformed fanout envelope", "error", err)
				continue
			}
			notifier.Deliver(ctx, env)
		}
	}
}
