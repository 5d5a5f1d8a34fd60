package domain

import (
	"fmt"
	"strings"
)

// Channel — канал доставки уведомления.
//
// Каждому каналу соответствует своя очередь в брокере и свой воркер.
type Channel string

const (
	// ChannelEmail — доставка по электронной почте.
	ChannelEmail Channel = "email"

	// ChannelPush — push-уведомление на устройства пользователя.
	ChannelPush Channel = "push"
)

// Channels возвращает все поддерживаемые каналы в фиксированном порядке.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelPush}
}

// Valid возвращает true для известных каналов.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelPush:
		return true
	default:
		return false
	}
}

func (c Channel) String() string {
	return string(c)
}

// ParseChannel разбирает строку в Channel (без учёта регистра).
// Пустая строка возвращает пустой канал без ошибки: выбор по предпочтениям.
func ParseChannel(s string) (Channel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	c := Channel(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: invalid channel %q, allowed values: email, push", ErrBadRequest, s)
	}
	return c, nil
}
