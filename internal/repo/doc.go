// Package repo хранит архив dead-letter в Postgres (pgx).
//
// Схема описана миграциями goose в migrations/ и встроена в бинарник;
// relay-janitor применяет их при старте через Migrate. Записи живут
// ограниченное время: janitor удаляет всё старше DEADLETTER_RETENTION.
package repo
