package domain

import "time"

// Preferences — настройки уведомлений пользователя.
type Preferences struct {
	EmailNotifications bool `json:"email_notifications"`
	PushNotifications  bool `json:"push_notifications"`
}

// Contact — контактные данные пользователя, полученные от user-service.
type Contact struct {
	UserID       string      `json:"user_id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	DeviceTokens []string    `json:"device_tokens"`
	Preferences  Preferences `json:"preferences"`
}

// Wants возвращает true, если пользователь включил канал в настройках.
func (c *Contact) Wants(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return c.Preferences.EmailNotifications
	case ChannelPush:
		return c.Preferences.PushNotifications
	default:
		return false
	}
}

// Recipients возвращает адресатов для канала.
// Пустой результат означает, что канал недостижим.
func (c *Contact) Recipients(ch Channel) []string {
	switch ch {
	case ChannelEmail:
		if c.Email == "" {
			return nil
		}
		return []string{c.Email}
	case ChannelPush:
		tokens := make([]string, 0, len(c.DeviceTokens))
		for _, t := range c.DeviceTokens {
			if t != "" {
				tokens = append(tokens, t)
			}
		}
		return tokens
	default:
		return nil
	}
}

// Template — шаблон уведомления (последняя версия по template_code).
type Template struct {
	ID        string    `json:"id,omitempty"`
	Code      string    `json:"template_code"`
	Version   int       `json:"version"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
