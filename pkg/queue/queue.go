// Package queue 定义总线上的消息信封与文件生命周期事件.
//
// 信封结构
//
//	{
//	  "header": {
//	    "topic": "fp.file.processed",
//	    "trace_id": "4bf92f3577b34da6a3ce929d0e0e4736",
//	    "producer": "fileparser",
//	    "occurred_at": "2026-01-02T03:04:05.123456Z",
//	    "version": "v1"
//	  },
//	  "payload": { ... }
//	}
//
// 消费端
//
//	for m := range ch {
//	    env, err := queue.Unwrap[queue.FileProcessedPayload](m)
//	    ...
//	    m.Ack()
//	}
//
// occurred_at 为 UTC，消费者应忽略未知字段.
package queue

import (
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
)

// PayloadVersion 当前信封版本.
const PayloadVersion = "v1"

// HeaderOption 修改信封头.
type HeaderOption func(*EventHeader)

// WithTraceID 设置 TraceID.
func WithTraceID(id string) HeaderOption { return func(h *EventHeader) { h.TraceID = id } }

// WithProducer 设置 Producer.
func WithProducer(p string) HeaderOption { return func(h *EventHeader) { h.Producer = p } }

// Wrap 把负载装进信封并生成 watermill 消息，头部同时写入消息元数据.
func Wrap[T any](topic string, payload T, opts ...HeaderOption) (*message.Message, error) {
	env := Message[T]{
		Header: EventHeader{
			Topic:      topic,
			OccurredAt: time.Now().UTC(),
			Version:    PayloadVersion,
		},
		Payload: payload,
	}
	for _, opt := range opts {
		opt(&env.Header)
	}

	data, err := sonic.Marshal(env)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(watermill.NewULID(), data)

	md := map[string]string{
		"topic":       topic,
		"trace_id":    env.Header.TraceID,
		"producer":    env.Header.Producer,
		"occurred_at": env.Header.OccurredAt.Format(time.RFC3339Nano),
		"version":     env.Header.Version,
	}
	for k, v := range md {
		if v != "" {
			msg.Metadata.Set(k, v)
		}
	}

	return msg, nil
}

// Unwrap 解出信封与泛型负载.
func Unwrap[T any](msg *message.Message) (Message[T], error) {
	var env Message[T]

	err := sonic.Unmarshal(msg.Payload, &env)

	return env, err
}
