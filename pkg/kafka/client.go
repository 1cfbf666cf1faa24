// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"agent-chat-go/internal/config"
	"agent-chat-go/pkg/events"
	"agent-chat-go/pkg/log"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// maxAttempts 之后即使处理失败也提交 offset，避免一条坏消息阻塞分区。
const maxAttempts = 3

// retryBackoff 是第一次重试前的等待时间，之后每次翻倍。
var retryBackoff = 500 * time.Millisecond

// EventProcessor defines the interface for any service that can process a message event.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type EventProcessor interface {
	Process(ctx context.Context, event events.MessageEvent) error
}

// AttemptCounter 记录某个事件的处理失败次数。
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// RedisAttempts 使用 Redis 计数失败次数，计数在 24 小时后过期。
type RedisAttempts struct {
	rdb *redis.Client
}

// NewRedisAttempts 创建一个基于 Redis 的失败计数器。
func NewRedisAttempts(rdb *redis.Client) *RedisAttempts {
	return &RedisAttempts{rdb: rdb}
}

func attemptsKey(key string) string {
	return fmt.Sprintf("kafka:attempts:%s", key)
}

func (a *RedisAttempts) Incr(ctx context.Context, key string) (int64, error) {
	k := attemptsKey(key)
	n, err := a.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	_ = a.rdb.Expire(ctx, k, 24*time.Hour).Err()
	return n, nil
}

func (a *RedisAttempts) Reset(ctx context.Context, key string) error {
	return a.rdb.Del(ctx, attemptsKey(key)).Err()
}

func brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Producer 把消息事件写入 Kafka，实现 service.EventPublisher。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。同一会话的事件使用相同的 key，保证分区内有序。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers(cfg)...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// Publish 发送一个消息事件到 Kafka。
func (p *Producer) Publish(ctx context.Context, event events.MessageEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key()),
		Value: eventBytes,
	})
}

// Close 刷新并关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// messageReader 是 *kafka.Reader 中消费者用到的部分。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StartConsumer 启动一个 Kafka 消费者来处理消息事件，直到 ctx 被取消。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor EventProcessor, attempts AttemptCounter) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)
	consume(ctx, r, processor, attempts)
}

func consume(ctx context.Context, r messageReader, processor EventProcessor, attempts AttemptCounter) {
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}
		handleMessage(ctx, r, m, processor, attempts)
	}
}

func handleMessage(ctx context.Context, r messageReader, m kafka.Message, processor EventProcessor, attempts AttemptCounter) {
	var event events.MessageEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		// 消息格式错误，直接提交，避免阻塞队列
		commit(ctx, r, m)
		return
	}

	// 同一会话内 Reader 不会重新投递未提交的消息，所以失败时在这里原地重试，
	// 直到成功或达到 maxAttempts 才提交 offset。
	key := event.DedupKey()
	for tried := int64(1); ; tried++ {
		err := processor.Process(ctx, event)
		if err == nil {
			_ = attempts.Reset(ctx, key)
			commit(ctx, r, m)
			return
		}

		// Redis 中的计数跨越进程重启，取两者中较大的一个
		n, incErr := attempts.Incr(ctx, key)
		if incErr != nil || n < tried {
			n = tried
		}
		log.Errorf("处理消息事件失败: key=%s, attempt=%d, Error: %v", key, n, err)
		if n >= maxAttempts {
			log.Errorf("消息事件多次失败(>=%d)，提交 offset 终止重试: key=%s", maxAttempts, key)
			commit(ctx, r, m)
			return
		}

		select {
		case <-ctx.Done():
			// 不提交，消费者重启后会从该 offset 重新读取
			return
		case <-time.After(retryBackoff << (n - 1)):
		}
	}
}

func commit(ctx context.Context, r messageReader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
