package api

import (
	"strconv"

	"github.com/shaiso/Relay/internal/domain"
)

// StatusResponse — статусы уведомления по каналам.
// Канал без записи сериализуется как null.
type StatusResponse map[domain.Channel]*domain.StatusRecord

// StatusFromRecords строит ответ для всех каналов.
func StatusFromRecords(records map[domain.Channel]*domain.StatusRecord) StatusResponse {
	resp := make(StatusResponse, len(domain.Channels()))
	for _, ch := range domain.Channels() {
		resp[ch] = records[ch]
	}
	return resp
}

// parseLimit разбирает limit из query; невалидное значение даёт def.
func parseLimit(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
