// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики (promauto, регистрируются в default registry)
//
// Все бинарники используют единый формат логирования
// и отдают метрики на /metrics через promhttp.
package telemetry
