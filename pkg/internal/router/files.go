package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/fileparser/pkg/internal/handle"
)

// RegisterFilesRoutes 注册文件相关路由.
func RegisterFilesRoutes(g *gin.RouterGroup, h *handle.Handler) {
	filesRoutes := g.Group("/files")
	{
		filesRoutes.POST("", h.Upload)
		filesRoutes.GET("", h.ListFiles)
		filesRoutes.GET("/search", h.SearchFiles)
		filesRoutes.GET("/stats", h.Stats)

		singleGroup := filesRoutes.Group("/:id")
		{
			singleGroup.GET("", h.GetFile)
			singleGroup.DELETE("", h.DeleteFile)
			singleGroup.GET("/progress", h.Progress)
		}
	}
}
