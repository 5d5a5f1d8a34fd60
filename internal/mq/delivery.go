package mq

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Outcome — решение обработчика о судьбе сообщения.
//
// Consumer переводит его в операцию брокера:
//
//	Ack           → basic.ack
//	RejectRequeue → basic.nack(requeue=true)   вернуть в очередь
//	RejectDiscard → basic.nack(requeue=false)  в dead-letter
type Outcome int

const (
	Ack Outcome = iota
	RejectRequeue
	RejectDiscard
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case RejectRequeue:
		return "reject_requeue"
	case RejectDiscard:
		return "reject_discard"
	default:
		return "unknown"
	}
}

// Delivery — полученное сообщение.
type Delivery struct {
	Body        []byte
	MessageID   string
	Redelivered bool
	Priority    uint8
	Timestamp   time.Time
	Headers     amqp.Table
}

func newDelivery(raw amqp.Delivery) *Delivery {
	return &Delivery{
		Body:        raw.Body,
		MessageID:   raw.MessageId,
		Redelivered: raw.Redelivered,
		Priority:    raw.Priority,
		Timestamp:   raw.Timestamp,
		Headers:     raw.Headers,
	}
}

// DeathInfo — сведения RabbitMQ о dead-letter сообщении.
type DeathInfo struct {
	Reason string // rejected, expired, maxlen
	Queue  string // очередь, из которой сообщение ушло в DLX
	Count  int64
}

// Death извлекает x-first-death-* заголовки, а при их отсутствии — первую
// запись x-death. ok=false, если сообщение не проходило через DLX.
func (d *Delivery) Death() (DeathInfo, bool) {
	var info DeathInfo

	if reason, ok := d.Headers["x-first-death-reason"].(string); ok {
		info.Reason = reason
		info.Queue, _ = d.Headers["x-first-death-queue"].(string)
	}

	if deaths, ok := d.Headers["x-death"].([]any); ok && len(deaths) > 0 {
		if entry, ok := deaths[0].(amqp.Table); ok {
			if info.Reason == "" {
				info.Reason, _ = entry["reason"].(string)
				info.Queue, _ = entry["queue"].(string)
			}
			switch n := entry["count"].(type) {
			case int64:
				info.Count = n
			case int32:
				info.Count = int64(n)
			case int:
				info.Count = int64(n)
			}
		}
	}

	return info, info.Reason != ""
}
