package handle

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/fileparser/pkg/internal/notify"
)

// FileEvents 升级为 WebSocket，推送文件的进度与状态事件.
// 连接建立后先发送当前状态快照，客户端断开不影响处理.
//
//	@Summary		进度推送
//	@Description	可通过 Authorization 头或 ?token= 认证
//	@Tags			files
//	@Security		BearerAuth
//	@Param			id		path	string	true	"文件 ID"
//	@Param			token	query	string	false	"访问令牌"
//	@Success		101
//	@Failure		401	{object}	types.ErrorResponse
//	@Failure		404	{object}	types.ErrorResponse
//	@Router			/ws/{id} [get]
func (h *Handler) FileEvents(c *gin.Context) {
	fileID := c.Param("id")

	// 先订阅再读快照，两者之间的旧事件由连接按进度丢弃
	sub := h.deps.Hub.Subscribe(fileID)

	rec, err := h.deps.Files.Get(c.Request.Context(), identity(c), fileID)
	if err != nil {
		h.deps.Hub.Unsubscribe(sub)
		h.writeError(c, err)

		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已写出错误响应
		h.deps.Hub.Unsubscribe(sub)
		h.deps.Logger.Warn().Err(err).Str("file_id", fileID).Msg("websocket upgrade failed")

		return
	}

	log := h.deps.Logger.With().Str("file_id", fileID).Uint("user_id", identity(c).UserID).Logger()
	notify.NewConn(ws, h.deps.Hub, sub, h.deps.Notify, log).Serve(c.Request.Context(), notify.Snapshot(rec))
}
