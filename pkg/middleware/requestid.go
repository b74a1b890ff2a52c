package middleware

import (
	"crypto/rand"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid"

	ctxPkg "github.com/yeisme/fileparser/pkg/context"
)

// RequestIDHeader 请求 ID 头.
const RequestIDHeader = "X-Request-ID"

const (
	requestIDKey    = "request_id"
	maxRequestIDLen = 64
)

// RequestIDMiddleware 沿用客户端的 X-Request-ID，缺失时生成 ULID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
		}

		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(ctxPkg.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// GetRequestID 返回当前请求 ID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
