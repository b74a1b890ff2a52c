package configs

import (
	"github.com/spf13/viper"
)

// MQType 消息队列类型.
type MQType string

const (
	MQTypeMemory MQType = "memory"
	MQTypeNATS   MQType = "nats"
	MQTypeRedis  MQType = "redis"
)

// MQConfig 消息总线配置，进度推送与生命周期事件共用.
type MQConfig struct {
	Type   MQType         `mapstructure:"type"   rule:"oneof=memory nats redis"`
	Memory MQMemoryConfig `mapstructure:"memory"`
	NATS   MQNATSConfig   `mapstructure:"nats"`
	Redis  MQRedisConfig  `mapstructure:"redis"`
}

// MQMemoryConfig 进程内 GoChannel 配置.
// BlockPublishUntilSubscriberAck 保证同一文件的事件按发布顺序送达.
type MQMemoryConfig struct {
	OutputBuffer                   int64 `mapstructure:"output_buffer"                      rule:"min=0"`
	BlockPublishUntilSubscriberAck bool  `mapstructure:"block_publish_until_subscriber_ack"`
}

// MQNATSConfig NATS 连接与 JetStream 配置.
type MQNATSConfig struct {
	URL         string   `mapstructure:"url"            rule:"required"`
	ClusterURLs []string `mapstructure:"cluster_urls"`
	ClientName  string   `mapstructure:"client_name"`
	User        string   `mapstructure:"user"`
	Password    string   `mapstructure:"password"`
	JWT         string   `mapstructure:"jwt"`
	NKey        string   `mapstructure:"nkey"`
	LoadBalance bool     `mapstructure:"load_balance"`

	MaxReconnects   int  `mapstructure:"max_reconnects"   rule:"min=-1,max=100"`
	ReconnectWait   int  `mapstructure:"reconnect_wait"   rule:"min=1,max=300"`
	ReconnectJitter bool `mapstructure:"reconnect_jitter"`
	StrictConnect   bool `mapstructure:"strict_connect"`
	PingInterval    int  `mapstructure:"ping_interval"    rule:"min=1,max=300"`
	MaxPingsOut     int  `mapstructure:"max_pings_out"    rule:"min=1,max=10"`
	ReconnectBuffer int  `mapstructure:"reconnect_buffer" rule:"min=1024,max=1048576"`

	SubjectPrefix string `mapstructure:"subject_prefix"`
	AckWait       int    `mapstructure:"ack_wait"       rule:"min=1"`

	// JetStream 默认关闭，core NATS 下每个副本都能收到全部推送.
	JetStream     bool   `mapstructure:"jetstream"`
	AutoProvision bool   `mapstructure:"auto_provision"`
	TrackMsgID    bool   `mapstructure:"track_msg_id"`
	AckAsync      bool   `mapstructure:"ack_async"`
	DurablePrefix string `mapstructure:"durable_prefix"`
}

// MQRedisConfig Redis Streams 配置.
type MQRedisConfig struct {
	Addr     string `mapstructure:"addr"     rule:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"       rule:"min=0,max=15"`
}

func (c *MQConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("mq.type", MQTypeMemory)

	v.SetDefault("mq.memory.output_buffer", 256)
	v.SetDefault("mq.memory.block_publish_until_subscriber_ack", true)

	v.SetDefault("mq.nats.url", "nats://localhost:4222")
	v.SetDefault("mq.nats.cluster_urls", []string{})
	v.SetDefault("mq.nats.client_name", AppName)
	v.SetDefault("mq.nats.load_balance", true)
	v.SetDefault("mq.nats.max_reconnects", 5)
	v.SetDefault("mq.nats.reconnect_wait", 5)
	v.SetDefault("mq.nats.reconnect_jitter", true)
	v.SetDefault("mq.nats.ping_interval", 20)
	v.SetDefault("mq.nats.max_pings_out", 3)
	v.SetDefault("mq.nats.reconnect_buffer", 32*1024)
	v.SetDefault("mq.nats.subject_prefix", AppName+".")
	v.SetDefault("mq.nats.ack_wait", 30)
	v.SetDefault("mq.nats.auto_provision", true)
	v.SetDefault("mq.nats.track_msg_id", true)
	v.SetDefault("mq.nats.durable_prefix", AppName)

	v.SetDefault("mq.redis.addr", "localhost:6379")
}
