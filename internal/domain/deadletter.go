package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeadLetter — задание, отклонённое воркером и архивированное из failed.queue.
//
// Хранится ограниченное время (retention), после чего удаляется.
type DeadLetter struct {
	ID         uuid.UUID       `json:"id"`
	Channel    Channel         `json:"channel"`
	RequestID  string          `json:"request_id"`
	Payload    json.RawMessage `json:"payload"`
	Reason     string          `json:"reason"`
	FailedAt   time.Time       `json:"failed_at"`
	ReplayedAt *time.Time      `json:"replayed_at,omitempty"`
}

// IsReplayed возвращает true, если задание уже было переотправлено.
func (d *DeadLetter) IsReplayed() bool {
	return d.ReplayedAt != nil
}
