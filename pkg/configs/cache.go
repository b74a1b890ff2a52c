package configs

import (
	"time"

	"github.com/spf13/viper"
)

// CacheConfig 查询缓存配置.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	StatsTTL time.Duration `mapstructure:"stats_ttl"`
}

func (c *CacheConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.stats_ttl", 30*time.Second)
}
