package notify

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/fileparser/pkg/configs"
	"github.com/yeisme/fileparser/pkg/queue"
)

// Notifier 发布进度事件.
type Notifier interface {
	Notify(ctx context.Context, ev queue.FileEventPayload) error
}

// BusNotifier 将事件写入消息总线.
// 内存总线配置为阻塞直到 Ack，同一文件的事件按发布顺序到达 Hub.
type BusNotifier struct {
	pub   message.Publisher
	topic string
}

// NewBusNotifier 创建 BusNotifier.
func NewBusNotifier(pub message.Publisher, topic string) *BusNotifier {
	if topic == "" {
		topic = queue.TopicFileEvents
	}

	return &BusNotifier{pub: pub, topic: topic}
}

// Notify 发布一条进度事件.
func (n *BusNotifier) Notify(ctx context.Context, ev queue.FileEventPayload) error {
	msg, err := queue.Wrap(n.topic, ev,
		queue.WithProducer(configs.AppName),
		queue.WithTraceID(queue.TraceID(ctx)),
	)
	if err != nil {
		return err
	}

	msg.SetContext(ctx)

	if err := n.pub.Publish(n.topic, msg); err != nil {
		return fmt.Errorf("publish %s event for %s: %w", ev.Type, ev.FileID, err)
	}

	return nil
}

// Topic 事件主题.
func (n *BusNotifier) Topic() string {
	return n.topic
}
