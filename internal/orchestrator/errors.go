package orchestrator

import (
	"fmt"

	"github.com/shaiso/Relay/internal/domain"
)

// Ошибки оркестратора. Все оборачивают domain.ErrBadRequest.
var (
	// ErrNoUser — не удалось определить пользователя.
	ErrNoUser = badRequest("no user context: provide a token or user_id")

	// ErrNoContent — в запросе нет ни template_code, ни адресатов.
	ErrNoContent = badRequest("template_code or to is required")

	// ErrNoChannelSelected — канал не указан и все настройки выключены.
	ErrNoChannelSelected = badRequest("no delivery channel selected")

	// ErrNoFeasibleChannel — ни один выбранный канал недостижим.
	ErrNoFeasibleChannel = badRequest("no feasible delivery channel")

	// ErrChannelRequired — прямой запрос без канала.
	ErrChannelRequired = badRequest("channel is required when recipients are given")
)

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrBadRequest, msg)
}
