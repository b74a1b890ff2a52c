// Package router 把处理器绑定到 gin 引擎.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/fileparser/pkg/configs"
	"github.com/yeisme/fileparser/pkg/internal/handle"
	"github.com/yeisme/fileparser/pkg/internal/storage"
	"github.com/yeisme/fileparser/pkg/middleware"
	"github.com/yeisme/fileparser/pkg/scheduler"
)

// Options 路由注册所需的依赖；Storage、Scheduler 为空时不注册对应路由.
type Options struct {
	Config    *configs.AppConfig
	Handler   *handle.Handler
	Storage   *storage.Manager
	Scheduler *scheduler.Scheduler
}

// Register 注册全部路由.
//
//	GET  /                 服务信息
//	/auth/*                注册、登录、刷新
//	/files/*, /users/*     需要 Bearer 令牌
//	/ws/:id                需要令牌，可以通过 ?token= 携带
//	/health/*              存储健康检查
//	/admin/scheduler/*     仅管理员
func Register(r *gin.Engine, opts Options) {
	cfg := opts.Config
	h := opts.Handler

	r.GET("/", h.Root)

	RegisterAuthRoutes(r.Group("/auth"), h)

	if opts.Storage != nil {
		RegisterHealthCheckRoute(r.Group("", middleware.StorageMiddleware(opts.Storage)))
	}

	// 普通接口只认请求头里的令牌
	headerOnly := cfg.Auth
	headerOnly.AllowQueryToken = false
	authed := r.Group("", middleware.AuthMiddleware(h.Verifier(), headerOnly, handle.Abort))
	RegisterFilesRoutes(authed, h)
	RegisterUsersRoutes(authed, h)

	ws := r.Group("/ws", middleware.AuthMiddleware(h.Verifier(), cfg.Auth, handle.Abort))
	ws.GET("/:id", h.FileEvents)

	if opts.Scheduler != nil {
		admin := r.Group("/admin",
			middleware.AuthMiddleware(h.Verifier(), headerOnly, handle.Abort),
			middleware.RequireMinRole(middleware.RoleAdmin),
			middleware.SchedulerMiddleware(opts.Scheduler),
		)
		RegisterSchedulerRoutes(admin)
	}

	RegisterSwaggerRoute(r, cfg.Server)
}

// RegisterAuthRoutes 注册认证路由.
func RegisterAuthRoutes(g *gin.RouterGroup, h *handle.Handler) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
}

// RegisterUsersRoutes 注册用户路由，列表仅管理员可见.
func RegisterUsersRoutes(g *gin.RouterGroup, h *handle.Handler) {
	users := g.Group("/users")
	{
		users.GET("/me", h.Me)
		users.GET("", middleware.RequireMinRole(middleware.RoleAdmin), h.ListUsers)
	}
}
