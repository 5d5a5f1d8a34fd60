// Package status — статусы доставки уведомлений.
//
// Tracker (relay-api) хранит последнюю запись по паре
// (notification_id, channel) в cache.Store с TTL 48h.
// Reporter (relay-worker) сообщает итог доставки в relay-api через
// POST /api/v1/notifications/{channel}/status с заголовком X-Status-Secret.
package status
