// Package upstream содержит resilient HTTP клиент к внешним сервисам
// (user-service, template-service) и типизированные клиенты поверх него.
//
// Client объединяет таймаут попытки, повторы на 5xx и сетевых ошибках,
// общий таймаут вызова и circuit breaker. Любая ошибка возвращается как
// *domain.UpstreamError, который разворачивается в sentinel таксономии:
//
//	400 → domain.ErrBadRequest
//	401 → domain.ErrUnauthorized
//	404 → domain.ErrNotFound
//	409 → domain.ErrConflict
//	*   → domain.ErrServiceUnavailable
//
// UserClient и TemplateClient кэшируют ответы на 15 минут через cache.Lookup.
package upstream
