package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName 所有领域事件发布到这个 topic exchange
	ExchangeName = "jobmail.events"

	heartbeat = 10 * time.Second
)

// NewConnection 建立带名字的连接，name 会显示在 RabbitMQ 管理界面里
func NewConnection(url, name string) (*amqp091.Connection, error) {
	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Properties: amqp091.Table{
			"connection_name": name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ (%s): %w", name, err)
	}
	return conn, nil
}

// DeclareExchange durable topic exchange，发布端和消费端都会声明
func DeclareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(ExchangeName, amqp091.ExchangeTopic, true, false, false, false, nil)
}
