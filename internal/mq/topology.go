package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/domain"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// ExchangeNotifications — единственный обменник: задания и dead-letter.
const ExchangeNotifications Exchange = "notifications.direct"

// Очереди.
const (
	QueueEmail  Queue = "email.queue"
	QueuePush   Queue = "push.queue"
	QueueFailed Queue = "failed.queue"
)

// Routing keys.
const (
	RoutingKeyEmail  RoutingKey = "email"
	RoutingKeyPush   RoutingKey = "push"
	RoutingKeyFailed RoutingKey = "failed"
)

// MaxPriority — x-max-priority очередей каналов.
const MaxPriority = domain.MaxPriority

// QueueFor возвращает очередь канала.
func QueueFor(ch domain.Channel) (Queue, error) {
	switch ch {
	case domain.ChannelEmail:
		return QueueEmail, nil
	case domain.ChannelPush:
		return QueuePush, nil
	default:
		return "", fmt.Errorf("no queue for channel %q", ch)
	}
}

// ChannelForQueue возвращает канал очереди. ok=false для failed.queue
// и неизвестных очередей.
func ChannelForQueue(q Queue) (domain.Channel, bool) {
	switch q {
	case QueueEmail:
		return domain.ChannelEmail, true
	case QueuePush:
		return domain.ChannelPush, true
	default:
		return "", false
	}
}

// RoutingKeyFor возвращает routing key канала.
func RoutingKeyFor(ch domain.Channel) (RoutingKey, error) {
	switch ch {
	case domain.ChannelEmail:
		return RoutingKeyEmail, nil
	case domain.ChannelPush:
		return RoutingKeyPush, nil
	default:
		return "", fmt.Errorf("no routing key for channel %q", ch)
	}
}

// SetupTopology объявляет обменник, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Exchange
		err := ch.ExchangeDeclare(
			string(ExchangeNotifications), // name
			amqp.ExchangeDirect,           // type
			true,                          // durable
			false,                         // auto-deleted
			false,                         // internal
			false,                         // no-wait
			nil,                           // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeNotifications, err)
		}

		// 2. Queues
		for _, q := range queueSpecs() {
			if _, err := ch.QueueDeclare(
				string(q.name), // name
				true,           // durable
				false,          // delete when unused
				false,          // exclusive
				false,          // no-wait
				q.args,         // arguments
			); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}

			// 3. Bindings
			if err := ch.QueueBind(
				string(q.name),
				string(q.routingKey),
				string(ExchangeNotifications),
				false,
				nil,
			); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", q.name, ExchangeNotifications, err)
			}
		}

		return nil
	})
}

type queueSpec struct {
	name       Queue
	routingKey RoutingKey
	args       amqp.Table
}

func queueSpecs() []queueSpec {
	channelArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeNotifications),
		"x-dead-letter-routing-key": string(RoutingKeyFailed),
		"x-max-priority":            int32(MaxPriority),
	}

	return []queueSpec{
		{QueueEmail, RoutingKeyEmail, channelArgs},
		{QueuePush, RoutingKeyPush, channelArgs},

		// failed.queue — без DLX: отсюда сообщения забирает janitor
		{QueueFailed, RoutingKeyFailed, nil},
	}
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Relay RabbitMQ Topology:

    notifications.direct (direct, durable)
    ├── email.queue  [routing: email]   Consumer: relay-worker CHANNEL=email   DLX → failed
    ├── push.queue   [routing: push]    Consumer: relay-worker CHANNEL=push    DLX → failed
    └── failed.queue [routing: failed]  Consumer: relay-janitor (archive)
`
}
