package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно сообщение и решает его судьбу.
type Handler func(ctx context.Context, d *Delivery) Outcome

// Consumer потребляет сообщения из очереди RabbitMQ.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue Queue

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — число неподтверждённых сообщений на consumer.
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: cfg.Prefetch,
	}
}

// Start потребляет сообщения, пока ctx не отменён или не вызван Stop.
// Блокирует. Возвращает ctx.Err() при остановке.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancelFunc = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	defer close(done)
	return c.consume(ctx)
}

// Stop останавливает consumer и ждёт завершения текущего сообщения.
func (c *Consumer) Stop() {
	c.mu.Lock()
	cancel, done := c.cancelFunc, c.done
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// consume — основной цикл потребления.
func (c *Consumer) consume(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "error", err)
			// Ждём переподключения
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				c.logger.Info("reconnected, restarting consumer")
				continue
			}
		}

		c.logger.Info("consumer started", "prefetch", c.prefetch)

		if err := c.processDeliveries(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}
	}
}

// setupConsume выставляет prefetch и подписывается на очередь.
func (c *Consumer) setupConsume() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(c.queue), // queue
		"",              // consumer tag (auto-generated)
		false,           // auto-ack (подтверждаем вручную)
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

var errDeliveriesClosed = errors.New("deliveries channel closed")

// processDeliveries обрабатывает сообщения из канала.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery вызывает обработчик и применяет его решение.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	outcome := c.invoke(ctx, raw)

	logger := c.logger.With("message_id", raw.MessageId, "outcome", outcome.String())

	var err error
	switch outcome {
	case Ack:
		err = raw.Ack(false)
	case RejectRequeue:
		err = raw.Nack(false, true)
	default:
		err = raw.Nack(false, false)
	}

	if err != nil {
		logger.Error("failed to settle message", "error", err)
		return
	}
	logger.Debug("message settled")
}

// invoke вызывает обработчик; паника в обработчике отправляет сообщение в dead-letter.
func (c *Consumer) invoke(ctx context.Context, raw amqp.Delivery) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panic", "message_id", raw.MessageId, "panic", r)
			outcome = RejectDiscard
		}
	}()

	return c.handler(ctx, newDelivery(raw))
}
