package middleware

import (
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/fileparser/pkg/configs"
)

// CORSMiddleware CORS中间件.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowOrigins = cfg.AllowOrigins
	config.AllowHeaders = append(config.AllowHeaders, "Authorization", RequestIDHeader, "If-None-Match")
	config.ExposeHeaders = []string{"ETag", RequestIDHeader}

	config.AllowWebSockets = true
	config.AllowFiles = true

	if cfg.Debug || len(cfg.AllowOrigins) == 0 || slices.Contains(cfg.AllowOrigins, "*") {
		config.AllowAllOrigins = true
		config.AllowOrigins = nil
	}

	return cors.New(config)
}
