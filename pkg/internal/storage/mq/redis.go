package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/yeisme/fileparser/pkg/configs"
)

// DefaultChannelBufferSize 默认通道缓冲区大小.
const DefaultChannelBufferSize = 100

// redisEnvelope Redis Pub/Sub 只传输字节，UUID 与元数据随负载一起编码.
type redisEnvelope struct {
	UUID     string            `json:"uuid"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Payload  []byte            `json:"payload"`
}

// RedisPublisher Redis Publisher 实现.
type RedisPublisher struct {
	client *redis.Client
}

// RedisSubscriber Redis Subscriber 实现，每次 Subscribe 使用独立的 PubSub 连接.
type RedisSubscriber struct {
	client  *redis.Client
	logger  watermill.LoggerAdapter
	mu      sync.Mutex
	subs    []*redis.PubSub
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

func init() {
	RegisterFactory(configs.MQTypeRedis, redisFactory)
}

// redisFactory 创建 Redis Publisher & Subscriber，两者共用一个客户端.
func redisFactory(
	ctx context.Context,
	cfg *configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()

		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	pub := &RedisPublisher{client: rdb}
	sub := &RedisSubscriber{client: rdb, logger: logger, closeCh: make(chan struct{})}

	return pub, sub, nil
}

// Publish 实现 Publisher 接口.
func (p *RedisPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		data, err := sonic.Marshal(redisEnvelope{UUID: msg.UUID, Metadata: msg.Metadata, Payload: msg.Payload})
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}

		ctx := msg.Context()
		if err := p.client.Publish(ctx, topic, data).Err(); err != nil {
			return err
		}
	}

	return nil
}

// Close 客户端由 Subscriber 关闭.
func (p *RedisPublisher) Close() error {
	return nil
}

// Subscribe 实现 Subscriber 接口.
func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("redis subscriber closed")
	}

	ps := s.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()

		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	s.subs = append(s.subs, ps)
	out := make(chan *message.Message, DefaultChannelBufferSize)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(out)

		in := ps.Channel()

		for {
			select {
			case <-s.closeCh:
				return
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}

				var env redisEnvelope
				if err := sonic.UnmarshalString(raw.Payload, &env); err != nil {
					s.logger.Error("drop undecodable redis message", err, watermill.LogFields{"topic": topic})

					continue
				}

				msg := message.NewMessage(env.UUID, env.Payload)
				for k, v := range env.Metadata {
					msg.Metadata.Set(k, v)
				}

				select {
				case out <- msg:
				case <-s.closeCh:
					return
				case <-ctx.Done():
					return
				}

				// Redis Pub/Sub 没有重投，等待确认只为保持顺序
				select {
				case <-msg.Acked():
				case <-msg.Nacked():
				case <-s.closeCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close 实现 Subscriber 接口.
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	close(s.closeCh)

	var errs []error
	for _, ps := range s.subs {
		errs = append(errs, ps.Close())
	}
	s.mu.Unlock()

	s.wg.Wait()

	errs = append(errs, s.client.Close())

	return errors.Join(errs...)
}
