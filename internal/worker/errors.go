package worker

import "errors"

// Ошибки воркера.
var (
	// ErrMalformedPayload — тело сообщения не разбирается как задание.
	ErrMalformedPayload = errors.New("malformed job payload")

	// ErrChannelMismatch — задание другого канала попало в очередь воркера.
	ErrChannelMismatch = errors.New("job channel does not match worker channel")
)
