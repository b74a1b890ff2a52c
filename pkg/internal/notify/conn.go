package notify

import (
	"bytes"
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yeisme/fileparser/pkg/configs"
	"github.com/yeisme/fileparser/pkg/metrics"
)

// 客户端保活消息.
const (
	clientPing      = "ping"
	clientKeepalive = "keepalive"
)

// Conn 一个 WebSocket 连接与其订阅.
// 只有写协程写 socket，读协程的回复经 replies 转交.
type Conn struct {
	ws      *websocket.Conn
	hub     *Hub
	sub     *Subscription
	cfg     configs.NotifyConfig
	replies chan Event
	log     zerolog.Logger
}

// NewConn 包装已升级的连接，sub 必须来自 hub.
func NewConn(ws *websocket.Conn, hub *Hub, sub *Subscription, cfg configs.NotifyConfig, log zerolog.Logger) *Conn {
	return &Conn{
		ws:      ws,
		hub:     hub,
		sub:     sub,
		cfg:     cfg,
		replies: make(chan Event, 8),
		log:     log.With().Str("file_id", sub.FileID).Logger(),
	}
}

// Serve 先发送快照，然后推送事件直到任一端断开，返回时已取消订阅并关闭连接.
// 断开连接不会影响文件处理.
func (c *Conn) Serve(ctx context.Context, snapshot Event) {
	metrics.WebsocketConnections.Inc()
	defer metrics.WebsocketConnections.Dec()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		c.writePump(ctx, snapshot)
		cancel()
		// 唤醒阻塞在 ReadMessage 的读协程
		_ = c.ws.Close()
	}()

	c.readPump(ctx)
	cancel()
	<-done

	c.hub.Unsubscribe(c.sub)
	_ = c.ws.Close()
}

func (c *Conn) readPump(ctx context.Context) {
	defer func() { _ = c.ws.Close() }()

	c.ws.SetReadLimit(c.cfg.ReadLimit)

	if err := c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		return
	}

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("websocket closed unexpectedly")
			}

			return
		}

		// 任意客户端消息都视为存活
		_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))

		reply := c.handle(data)

		select {
		case c.replies <- reply:
		case <-ctx.Done():
			return
		default:
			// 回复积压时丢弃
		}
	}
}

// handle 处理客户端消息：纯文本 ping 或 {"type":"ping"|"keepalive"}.
func (c *Conn) handle(data []byte) Event {
	text := bytes.TrimSpace(data)
	if string(text) == clientPing {
		return control(TypePong, "")
	}

	var msg struct {
		Type string `json:"type"`
	}

	if err := sonic.Unmarshal(text, &msg); err != nil {
		return control(TypeError, "invalid message")
	}

	switch msg.Type {
	case clientPing, clientKeepalive:
		return control(TypePong, "")
	default:
		return control(TypeError, "unknown message type")
	}
}

func (c *Conn) writePump(ctx context.Context, snapshot Event) {
	ticker := time.NewTicker(c.cfg.PingPeriod())
	defer ticker.Stop()

	if err := c.write(snapshot); err != nil {
		return
	}

	last := 0
	if snapshot.Data != nil {
		last = snapshot.Data.Progress
	}

	for {
		select {
		case <-ctx.Done():
			c.writeClose(websocket.CloseGoingAway)

			return
		case ev, ok := <-c.sub.C():
			if !ok {
				// 被 Hub 移除
				c.writeClose(websocket.CloseTryAgainLater)

				return
			}

			// 快照之前已排队的旧进度不再下发
			if ev.Data != nil && ev.Data.Progress < last {
				continue
			}

			if ev.Data != nil {
				last = ev.Data.Progress
			}

			if err := c.write(ev); err != nil {
				return
			}
		case reply := <-c.replies:
			if err := c.write(reply); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))

			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) write(ev Event) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		c.log.Error().Err(err).Str("type", ev.Type).Msg("encode event")

		return err
	}

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))

	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) writeClose(code int) {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""),
		time.Now().Add(c.cfg.WriteWait))
}
