package mq

import (
	"context"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/yeisme/fileparser/pkg/configs"
)

const (
	DefaultDrainTimeout   = 30 * time.Second
	DefaultFlusherTimeout = 10 * time.Second
)

func init() {
	RegisterFactory(configs.MQTypeNATS, natsFactory)
}

// buildNatsOptions 构建 NATS 连接选项.
func buildNatsOptions(cfg *configs.MQConfig) []nc.Option {
	n := cfg.NATS

	opts := []nc.Option{
		nc.Name(n.ClientName),
		nc.MaxReconnects(n.MaxReconnects),
		nc.ReconnectWait(time.Duration(n.ReconnectWait) * time.Second),
		nc.PingInterval(time.Duration(n.PingInterval) * time.Second),
		nc.MaxPingsOutstanding(n.MaxPingsOut),
		nc.ReconnectBufSize(n.ReconnectBuffer),
		nc.DrainTimeout(DefaultDrainTimeout),
		nc.FlusherTimeout(DefaultFlusherTimeout),
		nc.RetryOnFailedConnect(!n.StrictConnect),
	}

	if n.ReconnectJitter {
		opts = append(opts, nc.ReconnectJitter(100*time.Millisecond, time.Second))
	}

	if !n.LoadBalance {
		opts = append(opts, nc.DontRandomize())
	}

	return appendAuthOptions(opts, cfg)
}

// appendAuthOptions 添加认证选项，优先级 JWT > NKey > 用户名密码.
func appendAuthOptions(opts []nc.Option, cfg *configs.MQConfig) []nc.Option {
	switch {
	case cfg.NATS.JWT != "":
		opts = append(opts, nc.UserJWTAndSeed(cfg.NATS.JWT, cfg.NATS.NKey))
	case cfg.NATS.NKey != "":
		opts = append(opts, nc.Nkey(cfg.NATS.NKey, nil))
	case cfg.NATS.User != "":
		opts = append(opts, nc.UserInfo(cfg.NATS.User, cfg.NATS.Password))
	}

	return opts
}

// buildJetStreamConfig 构建 JetStream 配置.
// 进度推送默认走 core NATS：每个副本都能收到全部事件.
func buildJetStreamConfig(cfg *configs.MQConfig) nats.JetStreamConfig {
	n := cfg.NATS

	return nats.JetStreamConfig{
		Disabled:      !n.JetStream,
		AutoProvision: n.AutoProvision,
		TrackMsgId:    n.TrackMsgID,
		AckAsync:      n.AckAsync,
		DurablePrefix: n.DurablePrefix,
	}
}

// buildURL 构建连接 URL，集群地址优先.
func buildURL(cfg *configs.MQConfig) string {
	if len(cfg.NATS.ClusterURLs) > 0 {
		return strings.Join(cfg.NATS.ClusterURLs, ",")
	}

	return cfg.NATS.URL
}

// subjectCalculator 为主题加上配置的前缀.
func subjectCalculator(prefix string) nats.SubjectCalculator {
	return func(queueGroupPrefix, topic string) *nats.SubjectDetail {
		detail := nats.DefaultSubjectCalculator(queueGroupPrefix, prefix+topic)

		return detail
	}
}

// natsFactory 创建 NATS Publisher & Subscriber.
func natsFactory(
	_ context.Context,
	cfg *configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	opts := buildNatsOptions(cfg)
	jsCfg := buildJetStreamConfig(cfg)
	marshaler := &nats.JSONMarshaler{}
	calc := subjectCalculator(cfg.NATS.SubjectPrefix)

	pub, err := nats.NewPublisher(nats.PublisherConfig{
		URL:               buildURL(cfg),
		NatsOptions:       opts,
		JetStream:         jsCfg,
		Marshaler:         marshaler,
		SubjectCalculator: calc,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	sub, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:               buildURL(cfg),
		NatsOptions:       opts,
		JetStream:         jsCfg,
		Unmarshaler:       marshaler,
		SubjectCalculator: calc,
		SubscribersCount:  1,
		AckWaitTimeout:    time.Duration(cfg.NATS.AckWait) * time.Second,
	}, logger)
	if err != nil {
		_ = pub.Close()

		return nil, nil, err
	}

	return pub, sub, nil
}
