package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultAccessTokenMinutes = 30      // 访问令牌有效期（分钟）
	DefaultRefreshTokenDays   = 7       // 刷新令牌有效期（天）
	DefaultBcryptCost         = 12      // bcrypt 代价
	DefaultTokenIssuer        = AppName // 令牌签发者
	DefaultSigningAlgorithm   = "HS256" // 签名算法
	DefaultTokenQueryParam    = "token" // WebSocket 握手时携带令牌的查询参数
)

// AuthConfig 令牌签发与校验配置.
// SecretKey 为空时进程启动会生成随机密钥，重启后旧令牌全部失效.
type AuthConfig struct {
	SecretKey          string   `mapstructure:"secret_key"`
	Algorithm          string   `mapstructure:"algorithm"            rule:"oneof=HS256 HS384 HS512"`
	Issuer             string   `mapstructure:"issuer"               rule:"required"`
	AccessTokenMinutes int      `mapstructure:"access_token_minutes" rule:"min=1"`
	RefreshTokenDays   int      `mapstructure:"refresh_token_days"   rule:"min=1"`
	BcryptCost         int      `mapstructure:"bcrypt_cost"          rule:"min=4,max=31"`
	AllowQueryToken    bool     `mapstructure:"allow_query_token"` // 允许 WebSocket 通过 ?token= 鉴权
	QueryParam         string   `mapstructure:"query_param"`
	SkipPaths          []string `mapstructure:"skip_paths"` // 跳过认证的路径前缀
}

// AccessTTL 访问令牌有效期.
func (c *AuthConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

// RefreshTTL 刷新令牌有效期.
func (c *AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenDays) * 24 * time.Hour
}

func (c *AuthConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("auth.secret_key", "")
	v.SetDefault("auth.algorithm", DefaultSigningAlgorithm)
	v.SetDefault("auth.issuer", DefaultTokenIssuer)
	v.SetDefault("auth.access_token_minutes", DefaultAccessTokenMinutes)
	v.SetDefault("auth.refresh_token_days", DefaultRefreshTokenDays)
	v.SetDefault("auth.bcrypt_cost", DefaultBcryptCost)
	v.SetDefault("auth.allow_query_token", true)
	v.SetDefault("auth.query_param", DefaultTokenQueryParam)
	v.SetDefault("auth.skip_paths", []string{})
}
