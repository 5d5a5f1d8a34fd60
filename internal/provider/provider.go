package provider

import (
	"context"
	"errors"

	"github.com/shaiso/Relay/internal/domain"
)

// Имена провайдеров для breaker и логов.
const (
	NameEmail = "email-provider"
	NamePush  = "push-provider"
)

var (
	// ErrPermanent — провайдер отверг сообщение окончательно
	// (неверный адрес, отписанный получатель, невалидные токены).
	// Повторная отправка того же задания не поможет.
	ErrPermanent = errors.New("permanent provider error")

	// ErrTransient — временная ошибка провайдера, можно повторить.
	ErrTransient = errors.New("transient provider error")

	// ErrNotConfigured — у провайдера нет учётных данных.
	ErrNotConfigured = errors.New("provider not configured")
)

// Sender отправляет задание через внешнего провайдера.
// Возвращает идентификатор сообщения у провайдера.
type Sender interface {
	Send(ctx context.Context, job *domain.DeliveryJob) (string, error)
}

// IsPermanent возвращает true, если повтор отправки бессмысленен.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// NameFor возвращает имя провайдера канала.
func NameFor(ch domain.Channel) string {
	if ch == domain.ChannelPush {
		return NamePush
	}
	return NameEmail
}
