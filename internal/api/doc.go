// Package api содержит HTTP API сервер relay-api.
//
// Структура:
//   - handler.go              — Handler с DI (orchestrator, статусы, архив, health)
//   - routes.go               — регистрация маршрутов
//   - middleware.go           — logging, recovery, проверка X-Status-Secret
//   - auth.go                 — bearer-токены HS256
//   - response.go             — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                  — формы ответов
//   - notification_handler.go — /notifications и статусы
//   - deadletter_handler.go   — /dead-letters
//   - health_handler.go       — /health
package api
