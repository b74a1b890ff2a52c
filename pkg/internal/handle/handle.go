// Package handle 提供 HTTP 请求处理器.
package handle

import (
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yeisme/fileparser/pkg/configs"
	ctxPkg "github.com/yeisme/fileparser/pkg/context"
	"github.com/yeisme/fileparser/pkg/internal/notify"
	"github.com/yeisme/fileparser/pkg/internal/service"
	"github.com/yeisme/fileparser/pkg/internal/types"
	"github.com/yeisme/fileparser/pkg/middleware"
	"github.com/yeisme/fileparser/pkg/rule"
)

// multipartOverhead 允许 multipart 边界与表单头占用的额外字节.
const multipartOverhead = 1 << 20

// Deps 处理器依赖.
type Deps struct {
	Auth   *service.AuthService
	Files  *service.FileService
	Stats  *service.StatsService
	Hub    *notify.Hub
	Notify configs.NotifyConfig
	Upload configs.UploadConfig
	// AllowOrigins WebSocket 握手允许的来源，包含 * 时不校验
	AllowOrigins []string
	Logger       zerolog.Logger
}

// Handler 持有业务服务，方法即 gin 处理器.
type Handler struct {
	deps     Deps
	upgrader websocket.Upgrader
}

// New 创建 Handler.
func New(deps Deps) *Handler {
	h := &Handler{deps: deps}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// Verifier 供认证中间件使用.
func (h *Handler) Verifier() middleware.Verifier {
	return h.deps.Auth
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.deps.AllowOrigins) == 0 || slices.Contains(h.deps.AllowOrigins, "*") {
		return true
	}

	return slices.Contains(h.deps.AllowOrigins, origin)
}

// Abort 把错误写成响应并中止后续处理器，实现 middleware.ErrorWriter.
func Abort(c *gin.Context, err error) {
	status, msg := classify(err)
	c.AbortWithStatusJSON(status, types.ErrorResponse{Error: msg})
}

// writeError 按错误分类写响应，未知错误记录日志并隐藏细节.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		l := ctxPkg.WithTraceContext(c.Request.Context(), h.deps.Logger)
		l.Error().Err(err).
			Str("route", c.FullPath()).
			Str("request_id", middleware.GetRequestID(c)).
			Msg("request failed")
		_ = c.Error(err)
	}

	c.JSON(status, types.ErrorResponse{Error: msg})
}

func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "File too large"
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrNotReady):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// identity 认证中间件之后必然存在.
func identity(c *gin.Context) ctxPkg.Identity {
	id, _ := middleware.GetIdentity(c)

	return id
}

// bind 绑定请求并按 rule 标签校验.
func bind(c *gin.Context, obj any, b binding.Binding) error {
	var err error
	if b == nil {
		err = c.ShouldBind(obj)
	} else {
		err = c.ShouldBindWith(obj, b)
	}

	if err != nil {
		return service.Invalid(err)
	}

	if err := rule.ValidateStruct(obj); err != nil {
		return service.Invalid(err)
	}

	return nil
}
