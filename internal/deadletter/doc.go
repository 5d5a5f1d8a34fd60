// Package deadletter обслуживает failed.queue.
//
// # Компоненты
//
//   - Archiver — потребляет failed.queue и сохраняет сообщения в Postgres
//   - Replayer — переотправляет архивное задание в очередь его канала
//   - Purger — по cron-расписанию удаляет записи старше retention
//
// Переотправка не трогает маркеры обработки: у неудачных заданий
// маркера нет, поэтому воркер обработает копию с начала.
package deadletter
