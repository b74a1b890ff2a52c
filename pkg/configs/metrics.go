// Package configs 管理应用程序配置，包括Metrics的配置信息.
// Metrics配置支持Prometheus监控.
//
// Example:
//
//	config := configs.GetConfig()
//	metricsConfig := config.Metrics
//	if metricsConfig.Enabled {
//		// 初始化Metrics
//	}
package configs

import (
	"github.com/spf13/viper"
)

// MetricsConfig Metrics相关配置.
type MetricsConfig struct {
	Enabled        bool              `mapstructure:"enabled"`         // 是否启用Metrics
	Path           string            `mapstructure:"path"`            // 在主服务上暴露的路径
	Endpoint       string            `mapstructure:"endpoint"`        // 独立指标服务地址，为空时挂在主服务上
	RuntimeMetrics bool              `mapstructure:"runtime_metrics"` // 是否收集运行时指标
	Pprof          bool              `mapstructure:"pprof"`           // 独立指标服务上是否挂载 pprof
	Labels         map[string]string `mapstructure:"labels"`          // 默认标签
}

// setDefaults 设置Metrics配置的默认值.
func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.endpoint", "")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.pprof", false)
	v.SetDefault("metrics.labels", map[string]string{
		"service": AppName,
	})
}
