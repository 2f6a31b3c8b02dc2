package initial

import (
	"fmt"

	"OrderPulse/internal/config"
	"OrderPulse/internal/modules/order/infrastructure/mq"
	"OrderPulse/internal/modules/order/infrastructure/mq/kafka"
	"OrderPulse/pkg/zlog"
)

// ChangeStream 订单变更的发布端和消费端
type ChangeStream struct {
	Publisher mq.Publisher
	Consumer  mq.Consumer
	Topic     string
}

func (s *ChangeStream) Close() {
	if s.Publisher != nil {
		_ = s.Publisher.Close()
	}
	if s.Consumer != nil {
		_ = s.Consumer.Close()
	}
}

// InitChangeStream 配置了 brokers 就用 Kafka，否则使用进程内 Loopback
func InitChangeStream() (*ChangeStream, error) {
	conf := config.GetConfig().KafkaConfig
	topic := conf.OrderChangesTopic
	if topic == "" {
		topic = "order-changes"
	}

	if len(conf.Brokers) == 0 {
		zlog.Info("Kafka 未配置，订单变更走进程内 loopback")
		lb := mq.NewLoopback()
		return &ChangeStream{Publisher: lb, Consumer: lb, Topic: topic}, nil
	}

	if err := kafka.EnsureTopic(kafka.TopicAdminConfig{Brokers: conf.Brokers, ClientID: conf.ClientID},
		topic, conf.Partitions, conf.Replication); err != nil {
		return nil, fmt.Errorf("ensure topic %s: %w", topic, err)
	}
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{Brokers: conf.Brokers, ClientID: conf.ClientID})
	if err != nil {
		return nil, err
	}
	cons, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:  conf.Brokers,
		GroupID:  conf.ConsumerGroupID,
		Topics:   []string{topic},
		ClientID: conf.ClientID,
	})
	if err != nil {
		_ = pub.Close()
		return nil, err
	}
	zlog.Info(fmt.Sprintf("Kafka 已连接，topic: %s", topic))
	return &ChangeStream{Publisher: pub, Consumer: cons, Topic: topic}, nil
}
