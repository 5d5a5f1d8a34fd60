package cache

import (
	"context"
	"log/slog"
	"time"
)

// Lookup — read-through кэш: сначала store, при промахе load и запись с ttl.
//
// Ошибки кэша не ломают запрос: чтение с ошибкой считается промахом,
// ошибка записи только логируется. Ошибка load возвращается как есть
// и не кэшируется.
func Lookup[T any](ctx context.Context, store Store, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	found, err := store.Get(ctx, key, &cached)
	if err != nil {
		slog.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	}
	if found {
		return cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	if err := store.Set(ctx, key, value, ttl); err != nil {
		slog.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
	return value, nil
}
