// Package mq 提供基于 Watermill 库的统一消息队列操作接口。
// 支持发布/订阅模式，并通过工厂模式抽象不同的 MQ 实现。
//
// 支持的 MQ 类型：
//   - memory（进程内 GoChannel，默认）
//   - NATS（可选 JetStream）
//   - Redis Pub/Sub
//
// 使用示例：
//
//	client, err := mq.Open(ctx, &cfg.MQ, mq.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	msg := message.NewMessage(watermill.NewUUID(), []byte("hello world"))
//	err = client.Publish(ctx, "topic", msg)
//
//	ch, err := client.Subscribe(ctx, "topic")
//	for m := range ch {
//		fmt.Println(string(m.Payload))
//		m.Ack()
//	}
package mq

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/fileparser/pkg/configs"
	nlog "github.com/yeisme/fileparser/pkg/log"
)

// Factory 定义创建 Publisher + Subscriber 的工厂函数.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var factories = map[configs.MQType]Factory{}

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredMQTypes 返回已注册的 MQ 类型列表（已排序）.
func GetRegisteredMQTypes() []configs.MQType {
	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Options 可选参数.
type Options struct {
	// Registerer 非空时为 Publisher/Subscriber 装饰 Prometheus 指标.
	Registerer prometheus.Registerer
}

// Client 封装 watermill Publisher 与 Subscriber.
type Client struct {
	kind       configs.MQType
	publisher  message.Publisher
	subscriber message.Subscriber
	closeOnce  sync.Once
	closeErr   error
}

// Open 按配置创建客户端.
func Open(ctx context.Context, cfg *configs.MQConfig, opts Options) (*Client, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", cfg.Type)
	}

	logger := NewLoggerAdapter(nlog.Logger())

	pub, sub, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	if opts.Registerer != nil {
		builder := metrics.NewPrometheusMetricsBuilder(opts.Registerer, configs.AppName, "mq")

		if pub, err = builder.DecoratePublisher(pub); err != nil {
			return nil, fmt.Errorf("decorate publisher with metrics: %w", err)
		}

		if sub, err = builder.DecorateSubscriber(sub); err != nil {
			return nil, fmt.Errorf("decorate subscriber with metrics: %w", err)
		}
	}

	nlog.Logger().Info().Str("type", string(cfg.Type)).Msg("mq client initialized")

	return &Client{kind: cfg.Type, publisher: pub, subscriber: sub}, nil
}

// Type 返回底层实现类型.
func (c *Client) Type() configs.MQType {
	return c.kind
}

// Publisher 返回底层 Publisher，供 queue 包的辅助函数使用.
func (c *Client) Publisher() message.Publisher {
	return c.publisher
}

// Publish 便捷发布，ctx 写入消息上下文.
func (c *Client) Publish(ctx context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.publisher == nil {
		return errors.New("mq publisher not initialized")
	}

	for _, m := range msgs {
		m.SetContext(ctx)
	}

	return c.publisher.Publish(topic, msgs...)
}

// Subscribe 便捷订阅，ctx 结束时通道关闭.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, errors.New("mq subscriber not initialized")
	}

	return c.subscriber.Subscribe(ctx, topic)
}

// HealthCheck 向健康检查主题发布一条消息.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Publish(ctx, "fp.health.ping", message.NewMessage(watermill.NewUUID(), []byte("ping")))
}

// Close 关闭资源，可重复调用.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		var errs []error

		if c.publisher != nil {
			errs = append(errs, c.publisher.Close())
		}

		if c.subscriber != nil {
			errs = append(errs, c.subscriber.Close())
		}

		c.closeErr = errors.Join(errs...)
	})

	return c.closeErr
}
