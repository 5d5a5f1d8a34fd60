package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Приоритет задания доставки.
const (
	MinPriority     = 0
	MaxPriority     = 9
	DefaultPriority = 5
)

// DeliveryJob — задание на доставку уведомления по одному каналу.
//
// Создаётся оркестратором, публикуется в очередь канала и больше не
// изменяется. RequestID — ключ идемпотентности, общий для всех каналов
// одного уведомления.
//
// Формат в очереди:
//
//	email: {"request_id", "channel", "to": "a@b.c", "subject", "body", "priority", "metadata"}
//	push:  {"request_id", "channel", "to": ["tok1", ...], "title", "body", "priority", "metadata"}
type DeliveryJob struct {
	RequestID  string
	Channel    Channel
	Recipients []string
	Subject    string
	Body       string
	Priority   int
	Metadata   map[string]any
}

type jobWire struct {
	RequestID string          `json:"request_id"`
	Channel   Channel         `json:"channel,omitempty"`
	To        json.RawMessage `json:"to"`
	Subject   string          `json:"subject,omitempty"`
	Title     string          `json:"title,omitempty"`
	Body      string          `json:"body"`
	Priority  *int            `json:"priority,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// MarshalJSON кодирует задание в формат очереди канала.
func (j DeliveryJob) MarshalJSON() ([]byte, error) {
	w := jobWire{
		RequestID: j.RequestID,
		Channel:   j.Channel,
		Body:      j.Body,
		Metadata:  j.Metadata,
	}
	p := j.Priority
	w.Priority = &p

	var (
		to  []byte
		err error
	)
	if j.Channel == ChannelPush {
		recipients := j.Recipients
		if recipients == nil {
			recipients = []string{}
		}
		to, err = json.Marshal(recipients)
		w.Title = j.Subject
	} else {
		to, err = json.Marshal(j.Recipient())
		w.Subject = j.Subject
	}
	if err != nil {
		return nil, err
	}
	w.To = to

	return json.Marshal(w)
}

// UnmarshalJSON принимает "to" как строку или как массив строк,
// "subject" или "title" как заголовок. Отсутствующий priority
// заменяется значением по умолчанию.
func (j *DeliveryJob) UnmarshalJSON(data []byte) error {
	var w jobWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	recipients, err := decodeRecipients(w.To)
	if err != nil {
		return err
	}

	*j = DeliveryJob{
		RequestID:  w.RequestID,
		Channel:    w.Channel,
		Recipients: recipients,
		Subject:    w.Subject,
		Body:       w.Body,
		Priority:   DefaultPriority,
		Metadata:   w.Metadata,
	}
	if j.Subject == "" {
		j.Subject = w.Title
	}
	if w.Priority != nil {
		j.Priority = *w.Priority
	}
	return nil
}

func decodeRecipients(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode recipient: %w", err)
		}
		if s == "" {
			return nil, nil
		}
		return []string{s}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode recipients: %w", err)
	}
	return list, nil
}

// Recipient возвращает первого адресата (email-канал имеет ровно одного).
func (j *DeliveryJob) Recipient() string {
	if len(j.Recipients) == 0 {
		return ""
	}
	return j.Recipients[0]
}

// Validate проверяет задание перед обработкой воркером.
//
// Ошибка валидации терминальна: сообщение отклоняется без повторной
// постановки в очередь.
func (j *DeliveryJob) Validate() error {
	if strings.TrimSpace(j.RequestID) == "" {
		return NewValidationError("request_id", "must be present")
	}
	if !j.Channel.Valid() {
		return NewValidationError("channel", fmt.Sprintf("unknown channel %q", j.Channel))
	}

	switch j.Channel {
	case ChannelEmail:
		if len(j.Recipients) > 1 {
			return NewValidationError("to", fmt.Sprintf("email takes exactly one recipient, got %d", len(j.Recipients)))
		}
		if !strings.Contains(j.Recipient(), "@") {
			return NewValidationError("to", "email recipient must contain '@'")
		}
	case ChannelPush:
		if len(j.Recipients) == 0 {
			return NewValidationError("to", "at least one device token required")
		}
	}

	if strings.TrimSpace(j.Body) == "" && strings.TrimSpace(j.Subject) == "" {
		return NewValidationError("body", "content must not be empty")
	}
	if j.Priority < MinPriority || j.Priority > MaxPriority {
		return NewValidationError("priority", fmt.Sprintf("must be between %d and %d", MinPriority, MaxPriority))
	}
	return nil
}
