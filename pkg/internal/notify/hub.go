package notify

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/yeisme/fileparser/pkg/metrics"
	"github.com/yeisme/fileparser/pkg/queue"
)

// Subscription 一个文件的一个订阅者.
type Subscription struct {
	FileID string

	ch     chan Event
	closed bool
}

// C 事件通道，被移除或取消订阅后关闭.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Hub 按文件 ID 维护订阅者.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	log    zerolog.Logger
}

// NewHub 创建 Hub，buffer 为每个订阅者的缓冲长度.
func NewHub(buffer int, log zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 1
	}

	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe 注册订阅者.
func (h *Hub) Subscribe(fileID string) *Subscription {
	sub := &Subscription{FileID: fileID, ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[fileID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[fileID] = set
	}

	set[sub] = struct{}{}

	return sub
}

// Unsubscribe 移除订阅者，可重复调用.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.remove(sub)
}

// remove 需持有锁.
func (h *Hub) remove(sub *Subscription) {
	if sub.closed {
		return
	}

	sub.closed = true
	close(sub.ch)

	if set, ok := h.subs[sub.FileID]; ok {
		delete(set, sub)

		if len(set) == 0 {
			delete(h.subs, sub.FileID)
		}
	}
}

// Publish 非阻塞投递，缓冲区满的订阅者被移除，返回成功投递数.
func (h *Hub) Publish(fileID string, ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0

	for sub := range h.subs[fileID] {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			h.remove(sub)
			metrics.SubscribersEvicted.Inc()
			h.log.Warn().Str("file_id", fileID).Msg("subscriber too slow, evicted")
		}
	}

	if delivered > 0 {
		metrics.EventsDelivered.WithLabelValues(ev.Type).Add(float64(delivered))
	}

	return delivered
}

// Count 文件当前订阅者数量.
func (h *Hub) Count(fileID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs[fileID])
}

// Run 消费总线上的进度事件直到 ctx 结束或通道关闭，消息一律 Ack.
func (h *Hub) Run(ctx context.Context, messages <-chan *message.Message) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()

			return nil
		case msg, ok := <-messages:
			if !ok {
				h.closeAll()

				return nil
			}

			h.dispatch(msg)
			msg.Ack()
		}
	}
}

func (h *Hub) dispatch(msg *message.Message) {
	env, err := queue.ParseFileEvent(msg)
	if err != nil {
		h.log.Error().Err(err).Str("message_uuid", msg.UUID).Msg("drop undecodable file event")

		return
	}

	at := env.Header.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	h.Publish(env.Payload.FileID, FromPayload(env.Payload, at))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, set := range h.subs {
		for sub := range set {
			h.remove(sub)
		}
	}
}
