package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪 ID.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// 推送事件类型.
const (
	EventProgressUpdate = "progress_update"
	EventStatusUpdate   = "status_update"
)

// FileEventPayload 一次进度或状态变化.
// 同一文件的事件由单个 goroutine 顺序发布.
type FileEventPayload struct {
	Type           string  `json:"type"`
	FileID         string  `json:"file_id"`
	OwnerID        uint    `json:"owner_id"`
	Status         string  `json:"status"`
	Progress       int     `json:"progress"`
	ProcessingTime float64 `json:"processing_time"`
	Message        string  `json:"message,omitempty"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// FileRef 标识一个文件记录.
type FileRef struct {
	FileID           string `json:"file_id"`
	OwnerID          uint   `json:"owner_id"`
	OriginalFilename string `json:"original_filename"`
	FileType         string `json:"file_type"`
	FileSize         int64  `json:"file_size"`
}

// FileUploadedPayload 上传被接受.
type FileUploadedPayload struct {
	File FileRef `json:"file"`
}

// FileProcessedPayload 解析完成.
type FileProcessedPayload struct {
	File           FileRef `json:"file"`
	ProcessingTime float64 `json:"processing_time"`
	// ObjectKey 归档键，未归档时为空
	ObjectKey string `json:"object_key,omitempty"`
}

// FileFailedPayload 解析失败.
type FileFailedPayload struct {
	File     FileRef `json:"file"`
	Progress int     `json:"progress"`
	Error    string  `json:"error"`
}

// FileDeletedPayload 记录被删除.
type FileDeletedPayload struct {
	File      FileRef `json:"file"`
	ObjectKey string  `json:"object_key,omitempty"`
}
