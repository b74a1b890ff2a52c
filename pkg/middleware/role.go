package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Role 表示请求方的角色，数值越大权限越高.
type Role int

const (
	RoleAnonymous Role = iota
	RoleUser
	RoleAdmin
)

// String 返回角色的字符串表示.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	case RoleAnonymous:
		fallthrough
	default:
		return "anonymous"
	}
}

// GetRole 由认证身份推导角色，未认证为 anonymous.
func GetRole(c *gin.Context) Role {
	id, ok := GetIdentity(c)
	if !ok {
		return RoleAnonymous
	}

	if id.IsAdmin {
		return RoleAdmin
	}

	return RoleUser
}

// RequireMinRole 要求最小角色，不满足则返回 403.
// 必须挂在 AuthMiddleware 之后.
func RequireMinRole(minRole Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := GetRole(c)
		if r < minRole {
			msg := "insufficient role"
			if minRole == RoleAdmin {
				msg = "Admin privileges required"
			}

			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msg})

			return
		}

		c.Next()
	}
}
