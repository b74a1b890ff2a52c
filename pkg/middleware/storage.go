package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/fileparser/pkg/context"
	"github.com/yeisme/fileparser/pkg/internal/storage"
)

// StorageMiddleware 把存储管理器注入 request.Context，健康检查使用.
func StorageMiddleware(manager *storage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithStorageManager(c.Request.Context(), manager)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
