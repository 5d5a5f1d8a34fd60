package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/telemetry"
)

// ErrNacked — брокер не подтвердил приём сообщения.
var ErrNacked = errors.New("message nacked by broker")

// Publisher публикует задания доставки в RabbitMQ и ждёт подтверждения
// брокера, так что nil означает: сообщение принято и сохранено.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// PublishJob публикует задание в очередь его канала.
// MessageId — request_id, priority — приоритет задания.
func (p *Publisher) PublishJob(ctx context.Context, job domain.DeliveryJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := p.PublishRaw(ctx, job.Channel, job.RequestID, body, clampPriority(job.Priority)); err != nil {
		return err
	}

	telemetry.JobsPublished.WithLabelValues(string(job.Channel)).Inc()
	return nil
}

// PublishRaw публикует готовое тело в очередь канала. Используется при
// переотправке dead-letter, где payload хранится как есть.
func (p *Publisher) PublishRaw(ctx context.Context, channel domain.Channel, messageID string, body []byte, priority uint8) error {
	key, err := RoutingKeyFor(channel)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
		MessageId:    messageID,
		Priority:     priority,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	return p.publish(ctx, ExchangeNotifications, key, msg)
}

func (p *Publisher) publish(ctx context.Context, exchange Exchange, key RoutingKey, msg amqp.Publishing) error {
	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		confirm, err := ch.PublishWithDeferredConfirmWithContext(
			ctx,
			string(exchange), // exchange
			string(key),      // routing key
			false,            // mandatory
			false,            // immediate
			msg,
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, key, err)
		}

		// confirm == nil, если канал не в режиме confirms
		if confirm != nil {
			acked, err := confirm.WaitContext(ctx)
			if err != nil {
				return fmt.Errorf("await confirm %s/%s: %w", exchange, key, err)
			}
			if !acked {
				return fmt.Errorf("publish to %s/%s: %w", exchange, key, ErrNacked)
			}
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", key,
			"message_id", msg.MessageId,
			"priority", msg.Priority,
		)
		return nil
	})
}

func clampPriority(p int) uint8 {
	switch {
	case p < domain.MinPriority:
		return domain.MinPriority
	case p > domain.MaxPriority:
		return domain.MaxPriority
	default:
		return uint8(p)
	}
}
