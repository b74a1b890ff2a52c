// Package middleware 提供 HTTP 中间件.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/fileparser/pkg/configs"
	ctxPkg "github.com/yeisme/fileparser/pkg/context"
)

const identityKey = "identity"

// Verifier 校验访问令牌并返回调用者身份.
type Verifier interface {
	Verify(ctx context.Context, token string) (ctxPkg.Identity, error)
}

// ErrorWriter 把校验错误写成响应并中止请求.
type ErrorWriter func(c *gin.Context, err error)

// AuthMiddleware 校验 Bearer 令牌，并把身份注入 gin.Context 与 request.Context.
//   - 支持通过配置跳过某些路径前缀
//   - allow_query_token 打开时也接受 ?token=，浏览器的 WebSocket 无法设置请求头
func AuthMiddleware(v Verifier, conf configs.AuthConfig, fail ErrorWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if matchPrefix(c.Request.URL.Path, conf.SkipPaths) {
			c.Next()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && conf.AllowQueryToken && conf.QueryParam != "" {
			token = strings.TrimSpace(c.Query(conf.QueryParam))
		}

		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})

			return
		}

		id, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			fail(c, err)

			return
		}

		c.Set(identityKey, id)
		c.Request = c.Request.WithContext(ctxPkg.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// GetIdentity 返回认证中间件注入的身份.
func GetIdentity(c *gin.Context) (ctxPkg.Identity, bool) {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(ctxPkg.Identity); ok {
			return id, true
		}
	}

	return ctxPkg.GetIdentity(c.Request.Context())
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}

// matchPrefix path 是否以 prefixes 中任一前缀开头.
func matchPrefix(path string, prefixes []string) bool {
	if path == "" || len(prefixes) == 0 {
		return false
	}

	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}
