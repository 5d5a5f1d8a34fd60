package deadletter

import (
	"errors"
	"fmt"

	"github.com/shaiso/Relay/internal/domain"
)

var (
	// ErrNotReplayable — у записи нет канала, в который можно переотправить.
	ErrNotReplayable = fmt.Errorf("%w: dead letter cannot be replayed", domain.ErrBadRequest)

	// ErrInvalidSchedule — cron-выражение purge не разбирается.
	ErrInvalidSchedule = errors.New("invalid purge schedule")
)
