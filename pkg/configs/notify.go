package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultNotifyTopic      = "fp.file.events"
	DefaultNotifySendBuffer = 64
	DefaultNotifyPongWait   = 60 * time.Second
	DefaultNotifyWriteWait  = 10 * time.Second
	DefaultNotifyReadLimit  = 4096
)

// NotifyConfig 实时推送配置.
type NotifyConfig struct {
	Topic      string        `mapstructure:"topic"       rule:"required"`
	SendBuffer int           `mapstructure:"send_buffer" rule:"min=1"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	ReadLimit  int64         `mapstructure:"read_limit"  rule:"min=128"`
}

// PingPeriod 必须小于 PongWait.
func (c *NotifyConfig) PingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

func (c *NotifyConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("notify.topic", DefaultNotifyTopic)
	v.SetDefault("notify.send_buffer", DefaultNotifySendBuffer)
	v.SetDefault("notify.pong_wait", DefaultNotifyPongWait)
	v.SetDefault("notify.write_wait", DefaultNotifyWriteWait)
	v.SetDefault("notify.read_limit", DefaultNotifyReadLimit)
}
