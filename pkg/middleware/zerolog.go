package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/fileparser/pkg/log"
)

// GinLoggerMiddleware 使用zerolog记录Gin请求日志的中间件.
// 需挂在 RequestIDMiddleware 之后才会带上 request_id.
func GinLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		method := c.Request.Method
		clientIP := c.ClientIP()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		// 令牌可能出现在查询参数中，只记录路径
		if raw != "" && c.Query("token") == "" {
			path = path + "?" + raw
		}

		logger := log.Logger()

		var event *zerolog.Event

		switch {
		case statusCode >= http.StatusInternalServerError:
			event = logger.Error()
		case statusCode >= http.StatusBadRequest:
			event = logger.Warn()
		default:
			event = logger.Info()
		}

		event = event.
			Int("status", statusCode).
			Dur("latency", latency).
			Str("method", method).
			Str("path", path).
			Str("route", c.FullPath()).
			Str("client_ip", clientIP)

		if id := GetRequestID(c); id != "" {
			event = event.Str("request_id", id)
		}

		if identity, ok := GetIdentity(c); ok {
			event = event.Uint("user_id", identity.UserID)
		}

		if len(c.Errors) > 0 {
			event = event.Str("error", c.Errors.String())
		}

		event.Msg("HTTP request")
	}
}
