package domain

import "time"

// DeliveryStatus — статус доставки уведомления по каналу.
//
// Жизненный цикл:
//
//	pending → delivered
//	        ↘ failed
//
// Запись о статусе перезаписывается последним отчётом (last-write-wins).
type DeliveryStatus string

const (
	// StatusPending — задание опубликовано, воркер ещё не отчитался.
	StatusPending DeliveryStatus = "pending"

	// StatusDelivered — провайдер принял уведомление.
	StatusDelivered DeliveryStatus = "delivered"

	// StatusFailed — все попытки исчерпаны, задание ушло в dead-letter.
	StatusFailed DeliveryStatus = "failed"
)

// Valid возвращает true для известных статусов.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusDelivered, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true, если статус финальный.
func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// StatusRecord — последний известный статус доставки (notification_id, channel).
type StatusRecord struct {
	NotificationID string         `json:"notification_id"`
	Channel        Channel        `json:"channel"`
	Status         DeliveryStatus `json:"status"`
	Timestamp      time.Time      `json:"timestamp"`
	Error          string         `json:"error,omitempty"`
}

// ProcessedMarker — отметка о том, что задание уже обработано.
//
// Пока маркер существует, воркер не повторяет доставку.
type ProcessedMarker struct {
	RequestID   string         `json:"request_id"`
	Channel     Channel        `json:"channel"`
	Status      DeliveryStatus `json:"status"`
	Detail      string         `json:"detail,omitempty"`
	ProcessedAt time.Time      `json:"processed_at"`
}
