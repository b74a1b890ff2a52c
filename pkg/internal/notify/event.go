// Package notify 把文件进度事件扇出给 WebSocket 订阅者.
//
// 模拟器经 BusNotifier 写入消息总线，Hub.Run 消费总线并按文件 ID 分发到各订阅的缓冲通道.
package notify

import (
	"time"

	"github.com/yeisme/fileparser/pkg/internal/model"
	"github.com/yeisme/fileparser/pkg/queue"
)

// 客户端可见的事件类型.
const (
	TypeProgressUpdate = queue.EventProgressUpdate
	TypeStatusUpdate   = queue.EventStatusUpdate
	TypePong           = "pong"
	TypeError          = "error"
)

// EventData 事件负载.
type EventData struct {
	Status         string  `json:"status,omitempty"`
	Progress       int     `json:"progress"`
	ProcessingTime float64 `json:"processing_time"`
	Message        string  `json:"message,omitempty"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// Event 推送给客户端的信封.
type Event struct {
	Type      string     `json:"type"`
	FileID    string     `json:"file_id,omitempty"`
	Data      *EventData `json:"data,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// FromPayload 由总线负载构建事件.
func FromPayload(p queue.FileEventPayload, at time.Time) Event {
	return Event{
		Type:   p.Type,
		FileID: p.FileID,
		Data: &EventData{
			Status:         p.Status,
			Progress:       p.Progress,
			ProcessingTime: p.ProcessingTime,
			Message:        p.Message,
			ErrorMessage:   p.ErrorMessage,
		},
		Timestamp: at,
	}
}

// Snapshot 记录当前状态，连接建立时发送.
func Snapshot(rec *model.FileRecord) Event {
	return Event{
		Type:   TypeStatusUpdate,
		FileID: rec.ID,
		Data: &EventData{
			Status:         string(rec.Status),
			Progress:       rec.Progress,
			ProcessingTime: rec.ProcessingTime,
			ErrorMessage:   rec.ErrorMessage,
		},
		Timestamp: time.Now().UTC(),
	}
}

func control(typ, msg string) Event {
	ev := Event{Type: typ, Timestamp: time.Now().UTC()}
	if msg != "" {
		ev.Data = &EventData{Message: msg}
	}

	return ev
}
