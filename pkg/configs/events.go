package configs

import "github.com/spf13/viper"

// EventsConfig 控制生命周期事件发布的开关（全局与分主题）。
// 进度推送不受此开关影响。
type EventsConfig struct {
	Enabled bool             `mapstructure:"enabled"` // 总开关
	File    FileEventsConfig `mapstructure:"file"`
}

// FileEventsConfig 文件领域的事件开关。
type FileEventsConfig struct {
	Uploaded  bool `mapstructure:"uploaded"`
	Processed bool `mapstructure:"processed"`
	Failed    bool `mapstructure:"failed"`
	Deleted   bool `mapstructure:"deleted"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("events.enabled", true)

	v.SetDefault("events.file.uploaded", true)
	v.SetDefault("events.file.processed", true)
	v.SetDefault("events.file.failed", true)
	v.SetDefault("events.file.deleted", true)
}
