package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shaiso/Relay/internal/domain"
)

// Identity — источники идентификатора пользователя.
type Identity struct {
	// TokenSubject — sub из bearer-токена.
	TokenSubject string

	// UserID — user_id из тела запроса.
	UserID string
}

// Resolve возвращает эффективный user id: токен важнее тела запроса.
func (i Identity) Resolve() string {
	if s := strings.TrimSpace(i.TokenSubject); s != "" {
		return s
	}
	return strings.TrimSpace(i.UserID)
}

// TemplateContent — содержимое из шаблона.
type TemplateContent struct {
	Code      string
	Variables map[string]any
}

// DirectContent — готовое содержимое с явными адресатами.
type DirectContent struct {
	Recipients []string
	Subject    string
	Body       string
}

// Request — канонический запрос на уведомление.
// Ровно одно из Template и Direct заполнено.
type Request struct {
	RequestID string
	Identity  Identity

	// Channel — явный канал. Пустой — выбор по настройкам пользователя.
	Channel domain.Channel

	Priority *int
	Metadata map[string]any

	Template *TemplateContent
	Direct   *DirectContent
}

// Payload — тело POST /api/v1/notifications.
//
// Поддерживаются две формы:
//
//	{"template_code", "variables", "notification_type"?, "user_id"?, "request_id"?, "priority"?, "metadata"?}
//	{"channel", "to", "subject"|"title", "body", "request_id"?, "priority"?, "metadata"?}
type Payload struct {
	RequestID        string          `json:"request_id,omitempty"`
	NotificationType string          `json:"notification_type,omitempty"`
	Channel          string          `json:"channel,omitempty"`
	UserID           string          `json:"user_id,omitempty"`
	TemplateCode     string          `json:"template_code,omitempty"`
	Variables        map[string]any  `json:"variables,omitempty"`
	Priority         *int            `json:"priority,omitempty"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	To               json.RawMessage `json:"to,omitempty"`
	Subject          string          `json:"subject,omitempty"`
	Title            string          `json:"title,omitempty"`
	Body             string          `json:"body,omitempty"`
}

// NormalizeRequest приводит тело запроса к каноническому Request.
// tokenSubject — sub проверенного токена или пустая строка.
func NormalizeRequest(p Payload, tokenSubject string) (Request, error) {
	channel, err := resolveChannel(p.NotificationType, p.Channel)
	if err != nil {
		return Request{}, err
	}

	if p.Priority != nil && (*p.Priority < domain.MinPriority || *p.Priority > domain.MaxPriority) {
		return Request{}, domain.NewValidationError("priority",
			fmt.Sprintf("must be between %d and %d", domain.MinPriority, domain.MaxPriority))
	}

	req := Request{
		RequestID: strings.TrimSpace(p.RequestID),
		Identity:  Identity{TokenSubject: tokenSubject, UserID: p.UserID},
		Channel:   channel,
		Priority:  p.Priority,
		Metadata:  p.Metadata,
	}

	switch {
	case strings.TrimSpace(p.TemplateCode) != "":
		req.Template = &TemplateContent{
			Code:      strings.TrimSpace(p.TemplateCode),
			Variables: p.Variables,
		}

	case len(bytes.TrimSpace(p.To)) > 0 && string(bytes.TrimSpace(p.To)) != "null":
		if channel == "" {
			return Request{}, ErrChannelRequired
		}
		recipients, err := decodeRecipients(p.To)
		if err != nil {
			return Request{}, err
		}
		if channel == domain.ChannelEmail && len(recipients) > 1 {
			return Request{}, domain.NewValidationError("to", fmt.Sprintf("email takes exactly one recipient, got %d", len(recipients)))
		}
		subject := p.Subject
		if subject == "" {
			subject = p.Title
		}
		req.Direct = &DirectContent{
			Recipients: recipients,
			Subject:    subject,
			Body:       p.Body,
		}

	default:
		return Request{}, ErrNoContent
	}

	return req, nil
}

// resolveChannel объединяет notification_type и channel.
func resolveChannel(notificationType, channel string) (domain.Channel, error) {
	a, err := domain.ParseChannel(notificationType)
	if err != nil {
		return "", err
	}
	b, err := domain.ParseChannel(channel)
	if err != nil {
		return "", err
	}

	if a != "" && b != "" && a != b {
		return "", badRequest(fmt.Sprintf("notification_type %q conflicts with channel %q", a, b))
	}
	if a != "" {
		return a, nil
	}
	return b, nil
}

// decodeRecipients принимает строку или массив строк.
func decodeRecipients(raw json.RawMessage) ([]string, error) {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}, nil
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, domain.NewValidationError("to", "must be a string or an array of strings")
	}
	return many, nil
}
