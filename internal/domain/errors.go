package domain

import (
	"errors"
	"fmt"
)

// Таксономия ошибок, общая для всех компонентов.
//
// API отображает эти ошибки в HTTP-статусы, воркер — в исход обработки
// сообщения (ack / requeue / dead-letter).
var (
	// ErrBadRequest — некорректный запрос (400).
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized — нет или неверные учётные данные (401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound — ресурс не найден (404).
	ErrNotFound = errors.New("not found")

	// ErrConflict — конфликт состояния (409).
	ErrConflict = errors.New("conflict")

	// ErrServiceUnavailable — breaker открыт, 5xx или сервис недоступен.
	// Единственная ошибка, после которой имеет смысл повторять попытку.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrValidation — сообщение не прошло валидацию, повтор бессмысленен.
	ErrValidation = errors.New("validation failed")

	// ErrDeliveryExhausted — все попытки доставки исчерпаны.
	ErrDeliveryExhausted = errors.New("delivery attempts exhausted")
)

// UpstreamError — ошибка вызова внешнего сервиса.
//
// Err всегда один из sentinel-ов таксономии, поэтому errors.Is работает
// без знания конкретного сервиса.
type UpstreamError struct {
	Service    string // имя сервиса (user-service, template-service, ...)
	StatusCode int    // HTTP статус, 0 если ответа не было
	Body       string // тело ответа сервиса или причина без ответа
	Err        error  // sentinel таксономии
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		if e.Body == "" {
			return fmt.Sprintf("%s: %v", e.Service, e.Err)
		}
		return fmt.Sprintf("%s: %v: %s", e.Service, e.Err, e.Body)
	}
	if e.Body == "" {
		return fmt.Sprintf("%s: %v (status %d)", e.Service, e.Err, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v (status %d): %s", e.Service, e.Err, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ValidationError — ошибка валидации конкретного поля.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError создаёт ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsRetryable возвращает true, если операцию имеет смысл повторить позже.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}
