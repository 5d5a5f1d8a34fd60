// Package cache — общее key-value хранилище с TTL.
//
// Используется для трёх вещей:
//   - маркеры идемпотентности воркера (processed:{channel}:{id}, 24h)
//   - записи о статусе доставки (notif_status:{channel}:{id}, 48h, см. status)
//   - кэш ответов user-service и template-service (user-contact:{id}, template:{code}, 15m)
//
// Основная реализация — RedisStore (go-redis). MemoryStore нужен для
// тестов и как fallback, если Redis недоступен при старте.
package cache
