package queue

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/fileparser/pkg/configs"
)

// Emitter 按配置开关发布生命周期事件.
type Emitter struct {
	pub      message.Publisher
	cfg      configs.EventsConfig
	producer string
}

// NewEmitter 创建 Emitter，pub 为 nil 或 Emitter 为 nil 时所有发布都是空操作.
func NewEmitter(pub message.Publisher, cfg configs.EventsConfig) *Emitter {
	return &Emitter{pub: pub, cfg: cfg, producer: configs.AppName}
}

// FileUploaded 发布 fp.file.uploaded.
func (e *Emitter) FileUploaded(ctx context.Context, p FileUploadedPayload) error {
	return publish(ctx, e, func(c configs.FileEventsConfig) bool { return c.Uploaded }, TopicFileUploaded, p)
}

// FileProcessed 发布 fp.file.processed.
func (e *Emitter) FileProcessed(ctx context.Context, p FileProcessedPayload) error {
	return publish(ctx, e, func(c configs.FileEventsConfig) bool { return c.Processed }, TopicFileProcessed, p)
}

// FileFailed 发布 fp.file.failed.
func (e *Emitter) FileFailed(ctx context.Context, p FileFailedPayload) error {
	return publish(ctx, e, func(c configs.FileEventsConfig) bool { return c.Failed }, TopicFileFailed, p)
}

// FileDeleted 发布 fp.file.deleted.
func (e *Emitter) FileDeleted(ctx context.Context, p FileDeletedPayload) error {
	return publish(ctx, e, func(c configs.FileEventsConfig) bool { return c.Deleted }, TopicFileDeleted, p)
}

// ParseFileEvent 将 Watermill 消息解析为进度事件.
func ParseFileEvent(msg *message.Message) (Message[FileEventPayload], error) {
	return Unwrap[FileEventPayload](msg)
}

func publish[T any](ctx context.Context, e *Emitter, enabled func(configs.FileEventsConfig) bool, topic string, payload T) error {
	if e == nil || e.pub == nil || !e.cfg.Enabled || !enabled(e.cfg.File) {
		return nil
	}

	msg, err := Wrap(topic, payload, WithProducer(e.producer), WithTraceID(TraceID(ctx)))
	if err != nil {
		return err
	}

	msg.SetContext(ctx)

	return e.pub.Publish(topic, msg)
}

// TraceID 取当前 span 的 trace id，无 span 时为空串.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}

	return sc.TraceID().String()
}
