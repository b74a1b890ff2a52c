package mq

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yeisme/fileparser/pkg/configs"
)

func init() {
	RegisterFactory(configs.MQTypeMemory, memoryFactory)
}

// memoryFactory 进程内 GoChannel，Publisher 与 Subscriber 为同一实例.
// BlockPublishUntilSubscriberAck 打开时发布会等到所有订阅者确认，从而保持单个发布者的顺序.
func memoryFactory(
	_ context.Context,
	cfg *configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	ps := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            cfg.Memory.OutputBuffer,
		BlockPublishUntilSubscriberAck: cfg.Memory.BlockPublishUntilSubscriberAck,
	}, logger)

	return ps, ps, nil
}
