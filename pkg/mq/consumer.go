package mq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"jobmail/pkg/metrics"
	"jobmail/pkg/trace"
)

// MessageHandler 处理一条消息；返回包装 ErrDeadLetter 的错误时消息进入死信队列，其它错误重新入队
type MessageHandler func(ctx context.Context, body []byte) error

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	conn       *amqp091.Connection
	logger     *zap.Logger
}

// NewConsumer creates a consumer for a specific routing key.
// The queue is bound to the events exchange and a matching DLQ is declared.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url, "jobmail-consumer:"+queueName)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := DeclareExchange(ch); err != nil {
		return fail(fmt.Errorf("failed to declare exchange: %w", err))
	}
	if err := DeclareDLQExchange(ch); err != nil {
		return fail(fmt.Errorf("failed to declare DLQ exchange: %w", err))
	}
	if _, err := DeclareDLQQueue(ch, routingKey); err != nil {
		return fail(err)
	}

	if err := ch.Qos(10, 0, false); err != nil {
		return fail(fmt.Errorf("failed to set qos: %w", err))
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fail(fmt.Errorf("failed to declare queue: %w", err))
	}

	err = ch.QueueBind(
		q.Name,
		routingKey,
		ExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fail(fmt.Errorf("failed to bind queue: %w", err))
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming 阻塞消费直到 ctx 取消或 channel 关闭
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"",
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

// handle 保证每条消息都会被 ack 或 nack
func (c *Consumer) handle(parent context.Context, msg amqp091.Delivery) {
	start := time.Now()
	ctx := parent
	if traceID, ok := msg.Headers[traceHeader].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	log := c.logger.With(
		zap.String("routing_key", c.routingKey),
		zap.String("trace_id", trace.FromContext(ctx)),
	)

	status := "success"
	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			log.Error("Handler panic recovered", zap.Any("panic", r))
			if err := msg.Nack(false, true); err != nil {
				log.Error("Failed to nack message after panic", zap.Error(err))
			}
		}
		metrics.RecordMQConsumeLatency(c.routingKey, status, time.Since(start))
	}()

	err := c.handler(ctx, msg.Body)
	if err == nil {
		if err := msg.Ack(false); err != nil {
			log.Error("Failed to ack message", zap.Error(err))
		}
		return
	}

	if errors.Is(err, ErrDeadLetter) {
		status = "dead_letter"
		log.Warn("Message moved to DLQ", zap.Error(err))
		failedAt := time.Now().UTC().Format(time.RFC3339)
		if perr := publishToDLQ(ctx, c.channel, c.routingKey, failedAt, msg, err.Error()); perr != nil {
			log.Error("Failed to publish to DLQ, requeueing", zap.Error(perr))
			_ = msg.Nack(false, true)
			return
		}
		if err := msg.Ack(false); err != nil {
			log.Error("Failed to ack dead-lettered message", zap.Error(err))
		}
		return
	}

	status = "retry"
	log.Error("Handler error", zap.Error(err))
	if err := msg.Nack(false, true); err != nil {
		log.Error("Failed to nack message", zap.Error(err))
	}
}
